package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InitialAssignment optionally seeds the transaction log when a device is
// registered. The seed rows are written in the same database transaction as
// the device itself, so a device never appears with a half-written history.
type InitialAssignment struct {
	// Owner is the RZ username of the first owner. Empty means no owner seed.
	Owner string

	// RoomCode is the first location. Empty means no location seed.
	RoomCode string

	// Timestamp is the unix-second effective time for the seed rows.
	// Zero means "now".
	Timestamp int64
}

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetBySerialNumber retrieves a device by its serial number.
	GetBySerialNumber(ctx context.Context, serial string) (*Device, error)

	// List retrieves all devices in registration order.
	List(ctx context.Context) ([]Device, error)

	// ListByType retrieves all devices of a specific type.
	ListByType(ctx context.Context, deviceType DeviceType) ([]Device, error)

	// ListByBuyer retrieves all devices procured by a specific account.
	ListByBuyer(ctx context.Context, rzUsername string) ([]Device, error)

	// Create inserts a new device, optionally seeding its owner and
	// location history atomically.
	// Returns ErrDeviceExists if a device with the same ID already exists,
	// or ErrSerialNumberExists on a serial number collision.
	Create(ctx context.Context, device *Device, seed *InitialAssignment) error

	// Update modifies an existing device's metadata.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID. The device's transaction history and
	// purchasing information are removed by FK cascade.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// Count returns the total number of registered devices.
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `device_id, title, device_type, description, accessories,
		rz_username_buyer, serial_number, image_url, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// GetBySerialNumber retrieves a device by its serial number.
func (r *SQLiteRepository) GetBySerialNumber(ctx context.Context, serial string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE serial_number = ?`

	row := r.db.QueryRowContext(ctx, query, serial)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by serial number: %w", err)
	}
	return device, nil
}

// List retrieves all devices in registration order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY rowid`

	return r.queryDevices(ctx, query)
}

// ListByType retrieves all devices of a specific type.
func (r *SQLiteRepository) ListByType(ctx context.Context, deviceType DeviceType) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_type = ? ORDER BY rowid`

	return r.queryDevices(ctx, query, string(deviceType))
}

// ListByBuyer retrieves all devices procured by a specific account.
func (r *SQLiteRepository) ListByBuyer(ctx context.Context, rzUsername string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE rz_username_buyer = ? ORDER BY rowid`

	return r.queryDevices(ctx, query, rzUsername)
}

// Create inserts a new device, optionally seeding its history.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device, seed *InitialAssignment) error {
	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	query := `
		INSERT INTO devices (
			device_id, title, device_type, description, accessories,
			rz_username_buyer, serial_number, image_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		device.ID,
		device.Title,
		string(device.Type),
		device.Description,
		device.Accessories,
		device.RZUsernameBuyer,
		device.SerialNumber,
		device.ImageURL,
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "serial_number") {
				return ErrSerialNumberExists
			}
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	if seed != nil {
		ts := seed.Timestamp
		if ts == 0 {
			ts = now.Unix()
		}

		if seed.Owner != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO owner_transactions (device_id, rz_username, timestamp_owner_since) VALUES (?, ?, ?)`,
				device.ID, seed.Owner, ts,
			); err != nil {
				return fmt.Errorf("seeding owner transaction: %w", err)
			}
		}

		if seed.RoomCode != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO location_transactions (device_id, room_code, timestamp_located_since) VALUES (?, ?, ?)`,
				device.ID, seed.RoomCode, ts,
			); err != nil {
				return fmt.Errorf("seeding location transaction: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device create: %w", err)
	}

	return nil
}

// Update modifies an existing device's metadata.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			title = ?, device_type = ?, description = ?, accessories = ?,
			rz_username_buyer = ?, serial_number = ?, image_url = ?, updated_at = ?
		WHERE device_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.Title,
		string(device.Type),
		device.Description,
		device.Accessories,
		device.RZUsernameBuyer,
		device.SerialNumber,
		device.ImageURL,
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSerialNumberExists
		}
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE device_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Count returns the total number of registered devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty inventory marshals as [] rather than null.
	devices := make([]Device, 0)
	for rows.Next() {
		device, err := scanDeviceFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single row into a Device.
func scanDevice(row *sql.Row) (*Device, error) {
	return scanDeviceRow(row)
}

// scanDeviceFromRows scans a rows result into a Device.
func scanDeviceFromRows(rows *sql.Rows) (*Device, error) {
	return scanDeviceRow(rows)
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Title,
		&deviceType,
		&d.Description,
		&d.Accessories,
		&d.RZUsernameBuyer,
		&d.SerialNumber,
		&d.ImageURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
