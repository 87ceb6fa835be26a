package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrSerialNumberExists is returned when a serial number is already registered.
	ErrSerialNumberExists = errors.New("device: serial number already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidTitle is returned when a device title is empty or too long.
	ErrInvalidTitle = errors.New("device: invalid title")

	// ErrInvalidSerialNumber is returned when a serial number is empty or too long.
	ErrInvalidSerialNumber = errors.New("device: invalid serial number")

	// ErrInvalidBuyer is returned when the buyer username is empty or malformed.
	ErrInvalidBuyer = errors.New("device: invalid buyer username")
)
