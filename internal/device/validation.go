package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxTitleLength        = 200
	maxDescriptionLength  = 2000
	maxAccessoriesLength  = 1000
	maxSerialNumberLength = 100
	maxImageURLLength     = 500
	maxBuyerLength        = 64

	buyerPattern = `^[a-zA-Z0-9._-]{1,64}$`
)

var buyerRegex = regexp.MustCompile(buyerPattern)

// validDeviceTypes is a pre-computed set for O(1) lookups.
var validDeviceTypes map[DeviceType]struct{}

func init() {
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateTitle(d.Title); err != nil {
		return err
	}

	d.Type = NormalizeDeviceType(d.Type)
	if err := ValidateDeviceType(d.Type); err != nil {
		return err
	}

	if err := ValidateSerialNumber(d.SerialNumber); err != nil {
		return err
	}

	if err := ValidateBuyer(d.RZUsernameBuyer); err != nil {
		return err
	}

	if len(d.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDevice, maxDescriptionLength)
	}
	if len(d.Accessories) > maxAccessoriesLength {
		return fmt.Errorf("%w: accessories exceeds %d characters", ErrInvalidDevice, maxAccessoriesLength)
	}
	if len(d.ImageURL) > maxImageURLLength {
		return fmt.Errorf("%w: image_url exceeds %d characters", ErrInvalidDevice, maxImageURLLength)
	}

	return nil
}

// ValidateTitle checks if a device title is valid.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidTitle)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTitle, maxTitleLength)
	}
	return nil
}

// ValidateDeviceType checks if a device type is valid, ignoring case.
// Uses O(1) map lookup for efficiency.
func ValidateDeviceType(deviceType DeviceType) error {
	if _, ok := validDeviceTypes[NormalizeDeviceType(deviceType)]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDeviceType, deviceType)
}

// ValidateSerialNumber checks if a serial number is valid.
func ValidateSerialNumber(serial string) error {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return fmt.Errorf("%w: serial number cannot be empty", ErrInvalidSerialNumber)
	}
	if len(serial) > maxSerialNumberLength {
		return fmt.Errorf("%w: serial number exceeds %d characters", ErrInvalidSerialNumber, maxSerialNumberLength)
	}
	return nil
}

// ValidateBuyer checks if the buyer RZ username is well formed.
func ValidateBuyer(buyer string) error {
	if buyer == "" {
		return fmt.Errorf("%w: buyer cannot be empty", ErrInvalidBuyer)
	}
	if len(buyer) > maxBuyerLength || !buyerRegex.MatchString(buyer) {
		return fmt.Errorf("%w: %q", ErrInvalidBuyer, buyer)
	}
	return nil
}

// GenerateID creates a new device ID.
func GenerateID() string {
	return "dev-" + uuid.NewString()[:8]
}
