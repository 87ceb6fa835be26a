package ledger

import "errors"

var (
	// ErrDeviceNotFound indicates the referenced device does not exist.
	ErrDeviceNotFound = errors.New("ledger: device not found")

	// ErrNoOwnerHistory indicates the device exists but has no ownership
	// entries yet.
	ErrNoOwnerHistory = errors.New("ledger: no owner history")

	// ErrNoLocationHistory indicates the device exists but has no location
	// entries yet.
	ErrNoLocationHistory = errors.New("ledger: no location history")

	// ErrTransactionNotFound indicates no entry exists with the given
	// sequence number for the given device.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")

	// ErrInvalidOwner indicates an empty or malformed owner username.
	ErrInvalidOwner = errors.New("ledger: invalid owner username")

	// ErrInvalidRoomCode indicates an empty or malformed room code.
	ErrInvalidRoomCode = errors.New("ledger: invalid room code")
)
