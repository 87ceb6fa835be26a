package purchase

import "errors"

var (
	// ErrNotFound indicates the device has no purchasing record.
	ErrNotFound = errors.New("purchase: not found")

	// ErrAlreadyExists indicates the device already has a purchasing
	// record. Records are corrected with Update, not recreated.
	ErrAlreadyExists = errors.New("purchase: record already exists for device")

	// ErrDeviceNotFound indicates the referenced device does not exist.
	ErrDeviceNotFound = errors.New("purchase: device not found")

	// ErrInvalidPrice indicates an empty or malformed price.
	ErrInvalidPrice = errors.New("purchase: invalid price")

	// ErrInvalidSeller indicates an empty seller.
	ErrInvalidSeller = errors.New("purchase: invalid seller")
)
