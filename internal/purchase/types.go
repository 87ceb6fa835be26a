package purchase

import "github.com/google/uuid"

// Information is the purchasing record of a single device.
//
// Price is kept as a decimal string, never a float: it is displayed and
// compared, not computed with, and a TEXT column round-trips exactly.
// CostCentre is nil when the purchase was not booked against one.
type Information struct {
	ID                   string `json:"purchasing_information_id"`
	DeviceID             string `json:"device_id"`
	Price                string `json:"price"`
	TimestampPurchase    int64  `json:"timestamp_purchase"`
	TimestampWarrantyEnd int64  `json:"timestamp_warranty_end"`
	CostCentre           *int64 `json:"cost_centre,omitempty"`
	Seller               string `json:"seller"`
}

// GenerateID creates a new purchasing record ID in the form pur-xxxxxxxx.
func GenerateID() string {
	return "pur-" + uuid.NewString()[:8]
}
