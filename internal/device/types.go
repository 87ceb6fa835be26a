package device

import (
	"strings"
	"time"
)

// Device represents a tracked hardware asset in the inventory.
// This matches the database schema in migrations/20260601_120000_initial_schema.up.sql.
//
// The struct deliberately carries no "current owner" or "current location"
// field. Both are derived from the append-only transaction log in the ledger
// package; storing them here would create a second source of truth.
type Device struct {
	// Identity
	ID    string `json:"device_id"`
	Title string `json:"title"`

	// Classification
	Type DeviceType `json:"device_type"`

	// Descriptive metadata
	Description string `json:"description,omitempty"`
	Accessories string `json:"accessories,omitempty"`

	// SerialNumber is unique across the whole inventory.
	SerialNumber string `json:"serial_number"`

	// RZUsernameBuyer is the account that procured the device, which is
	// not necessarily its first or current owner.
	RZUsernameBuyer string `json:"rz_username_buyer"`

	ImageURL string `json:"image_url,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy creates an independent copy of the Device.
// All fields are values, so a shallow copy gives full cache isolation.
func (d *Device) Copy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// DeviceType represents the category of a hardware asset.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceType constants.
const (
	DeviceTypeLaptop     DeviceType = "laptop"
	DeviceTypeMonitor    DeviceType = "monitor"
	DeviceTypeDesktop    DeviceType = "desktop"
	DeviceTypeTablet     DeviceType = "tablet"
	DeviceTypeSmartphone DeviceType = "smartphone"
	DeviceTypePrinter    DeviceType = "printer"
	DeviceTypeProjector  DeviceType = "projector"
	DeviceTypeDock       DeviceType = "dock"
	DeviceTypePeripheral DeviceType = "peripheral"
	DeviceTypeOther      DeviceType = "other"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		DeviceTypeLaptop, DeviceTypeMonitor, DeviceTypeDesktop,
		DeviceTypeTablet, DeviceTypeSmartphone, DeviceTypePrinter,
		DeviceTypeProjector, DeviceTypeDock, DeviceTypePeripheral,
		DeviceTypeOther,
	}
}

// NormalizeDeviceType lower-cases a device type so clients may send
// "Laptop" or "LAPTOP" interchangeably; the canonical form is stored.
func NormalizeDeviceType(t DeviceType) DeviceType {
	return DeviceType(strings.ToLower(string(t)))
}

// IsValidDeviceType returns true if t is a recognised device type,
// ignoring case.
func IsValidDeviceType(t DeviceType) bool {
	t = NormalizeDeviceType(t)
	for _, v := range AllDeviceTypes() {
		if t == v {
			return true
		}
	}
	return false
}
