package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxListLimit = 1000

// Repository provides access to the ownership and location streams.
//
// Append* treats a zero timestamp as "now". List* returns entries in
// effective-time order, oldest first. Latest* projects the current value
// and distinguishes "device unknown" from "device has no history".
// Update*/Delete* are correction operations and address entries by their
// sequence number.
type Repository interface {
	AppendOwner(ctx context.Context, deviceID, rzUsername string, timestamp int64) (*OwnerTransaction, error)
	ListOwner(ctx context.Context, deviceID string, limit int) ([]OwnerTransaction, error)
	LatestOwner(ctx context.Context, deviceID string) (*OwnerTransaction, error)
	UpdateOwner(ctx context.Context, deviceID string, seq int64, rzUsername string, timestamp int64) (*OwnerTransaction, error)
	DeleteOwner(ctx context.Context, deviceID string, seq int64) error

	AppendLocation(ctx context.Context, deviceID, roomCode string, timestamp int64) (*LocationTransaction, error)
	ListLocation(ctx context.Context, deviceID string, limit int) ([]LocationTransaction, error)
	LatestLocation(ctx context.Context, deviceID string) (*LocationTransaction, error)
	UpdateLocation(ctx context.Context, deviceID string, seq int64, roomCode string, timestamp int64) (*LocationTransaction, error)
	DeleteLocation(ctx context.Context, deviceID string, seq int64) error
}

// SQLiteRepository implements Repository on the shared SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a ledger repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// AppendOwner records a new owner for the device, effective at timestamp
// (unix seconds, 0 means now). The previous owner entry is left untouched.
func (r *SQLiteRepository) AppendOwner(ctx context.Context, deviceID, rzUsername string, timestamp int64) (*OwnerTransaction, error) {
	rzUsername = strings.TrimSpace(rzUsername)
	if rzUsername == "" {
		return nil, ErrInvalidOwner
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO owner_transactions (device_id, rz_username, timestamp_owner_since)
		VALUES (?, ?, ?)
	`, deviceID, rzUsername, timestamp)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("appending owner transaction: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading owner transaction seq: %w", err)
	}

	return &OwnerTransaction{
		Seq:                 seq,
		DeviceID:            deviceID,
		RZUsername:          rzUsername,
		TimestampOwnerSince: timestamp,
	}, nil
}

// ListOwner returns the device's ownership stream oldest first. A
// non-positive limit returns the full stream. A device with no entries
// yields an empty slice, not an error; an unknown device yields
// ErrDeviceNotFound.
func (r *SQLiteRepository) ListOwner(ctx context.Context, deviceID string, limit int) ([]OwnerTransaction, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, device_id, rz_username, timestamp_owner_since
		FROM owner_transactions
		WHERE device_id = ?
		ORDER BY timestamp_owner_since ASC, seq ASC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying owner transactions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only result set

	entries := make([]OwnerTransaction, 0)
	for rows.Next() {
		var e OwnerTransaction
		if err := rows.Scan(&e.Seq, &e.DeviceID, &e.RZUsername, &e.TimestampOwnerSince); err != nil {
			return nil, fmt.Errorf("scanning owner transaction: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owner transactions: %w", err)
	}

	if len(entries) == 0 {
		if err := r.requireDevice(ctx, deviceID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// LatestOwner projects the device's current owner: the entry with the
// greatest effective timestamp, insertion order breaking ties.
func (r *SQLiteRepository) LatestOwner(ctx context.Context, deviceID string) (*OwnerTransaction, error) {
	var e OwnerTransaction
	err := r.db.QueryRowContext(ctx, `
		SELECT seq, device_id, rz_username, timestamp_owner_since
		FROM owner_transactions
		WHERE device_id = ?
		ORDER BY timestamp_owner_since DESC, seq DESC
		LIMIT 1
	`, deviceID).Scan(&e.Seq, &e.DeviceID, &e.RZUsername, &e.TimestampOwnerSince)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.requireDevice(ctx, deviceID); err != nil {
			return nil, err
		}
		return nil, ErrNoOwnerHistory
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest owner: %w", err)
	}
	return &e, nil
}

// UpdateOwner corrects an existing entry in place. The seq is stable; only
// the owner and effective timestamp change.
func (r *SQLiteRepository) UpdateOwner(ctx context.Context, deviceID string, seq int64, rzUsername string, timestamp int64) (*OwnerTransaction, error) {
	rzUsername = strings.TrimSpace(rzUsername)
	if rzUsername == "" {
		return nil, ErrInvalidOwner
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE owner_transactions
		SET rz_username = ?, timestamp_owner_since = ?
		WHERE seq = ? AND device_id = ?
	`, rzUsername, timestamp, seq, deviceID)
	if err != nil {
		return nil, fmt.Errorf("updating owner transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking owner transaction update: %w", err)
	}
	if affected == 0 {
		return nil, ErrTransactionNotFound
	}

	return &OwnerTransaction{
		Seq:                 seq,
		DeviceID:            deviceID,
		RZUsername:          rzUsername,
		TimestampOwnerSince: timestamp,
	}, nil
}

// DeleteOwner removes a single entry from the ownership stream.
func (r *SQLiteRepository) DeleteOwner(ctx context.Context, deviceID string, seq int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM owner_transactions WHERE seq = ? AND device_id = ?
	`, seq, deviceID)
	if err != nil {
		return fmt.Errorf("deleting owner transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking owner transaction delete: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// AppendLocation records a new location for the device, effective at
// timestamp (unix seconds, 0 means now).
func (r *SQLiteRepository) AppendLocation(ctx context.Context, deviceID, roomCode string, timestamp int64) (*LocationTransaction, error) {
	roomCode = strings.TrimSpace(roomCode)
	if roomCode == "" {
		return nil, ErrInvalidRoomCode
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO location_transactions (device_id, room_code, timestamp_located_since)
		VALUES (?, ?, ?)
	`, deviceID, roomCode, timestamp)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("appending location transaction: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading location transaction seq: %w", err)
	}

	return &LocationTransaction{
		Seq:                   seq,
		DeviceID:              deviceID,
		RoomCode:              roomCode,
		TimestampLocatedSince: timestamp,
	}, nil
}

// ListLocation returns the device's location stream oldest first. A
// non-positive limit returns the full stream.
func (r *SQLiteRepository) ListLocation(ctx context.Context, deviceID string, limit int) ([]LocationTransaction, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, device_id, room_code, timestamp_located_since
		FROM location_transactions
		WHERE device_id = ?
		ORDER BY timestamp_located_since ASC, seq ASC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying location transactions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only result set

	entries := make([]LocationTransaction, 0)
	for rows.Next() {
		var e LocationTransaction
		if err := rows.Scan(&e.Seq, &e.DeviceID, &e.RoomCode, &e.TimestampLocatedSince); err != nil {
			return nil, fmt.Errorf("scanning location transaction: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location transactions: %w", err)
	}

	if len(entries) == 0 {
		if err := r.requireDevice(ctx, deviceID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// LatestLocation projects the device's current location.
func (r *SQLiteRepository) LatestLocation(ctx context.Context, deviceID string) (*LocationTransaction, error) {
	var e LocationTransaction
	err := r.db.QueryRowContext(ctx, `
		SELECT seq, device_id, room_code, timestamp_located_since
		FROM location_transactions
		WHERE device_id = ?
		ORDER BY timestamp_located_since DESC, seq DESC
		LIMIT 1
	`, deviceID).Scan(&e.Seq, &e.DeviceID, &e.RoomCode, &e.TimestampLocatedSince)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.requireDevice(ctx, deviceID); err != nil {
			return nil, err
		}
		return nil, ErrNoLocationHistory
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest location: %w", err)
	}
	return &e, nil
}

// UpdateLocation corrects an existing entry in place.
func (r *SQLiteRepository) UpdateLocation(ctx context.Context, deviceID string, seq int64, roomCode string, timestamp int64) (*LocationTransaction, error) {
	roomCode = strings.TrimSpace(roomCode)
	if roomCode == "" {
		return nil, ErrInvalidRoomCode
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE location_transactions
		SET room_code = ?, timestamp_located_since = ?
		WHERE seq = ? AND device_id = ?
	`, roomCode, timestamp, seq, deviceID)
	if err != nil {
		return nil, fmt.Errorf("updating location transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking location transaction update: %w", err)
	}
	if affected == 0 {
		return nil, ErrTransactionNotFound
	}

	return &LocationTransaction{
		Seq:                   seq,
		DeviceID:              deviceID,
		RoomCode:              roomCode,
		TimestampLocatedSince: timestamp,
	}, nil
}

// DeleteLocation removes a single entry from the location stream.
func (r *SQLiteRepository) DeleteLocation(ctx context.Context, deviceID string, seq int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM location_transactions WHERE seq = ? AND device_id = ?
	`, seq, deviceID)
	if err != nil {
		return fmt.Errorf("deleting location transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking location transaction delete: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// requireDevice returns ErrDeviceNotFound when the device row is absent.
// Used to distinguish "no history yet" from "no such device" on reads.
func (r *SQLiteRepository) requireDevice(ctx context.Context, deviceID string) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM devices WHERE device_id = ?`, deviceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("checking device existence: %w", err)
	}
	return nil
}

// clampLimit caps explicit client limits. Zero and negative values mean
// "return the whole stream": SQLite treats a negative LIMIT as unbounded.
func clampLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// SQLite surfaces foreign key failures only through the error text.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
