package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Matches a non-negative decimal amount with at most two fraction digits.
var validPrice = regexp.MustCompile(`^[0-9]{1,10}(\.[0-9]{1,2})?$`)

// Repository provides access to purchasing records.
type Repository interface {
	Create(ctx context.Context, info *Information) error
	GetByDeviceID(ctx context.Context, deviceID string) (*Information, error)
	Update(ctx context.Context, info *Information) error
	Delete(ctx context.Context, deviceID string) error
	List(ctx context.Context) ([]Information, error)
}

// SQLiteRepository implements Repository on the shared SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a purchasing repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func validate(info *Information) error {
	info.Price = strings.TrimSpace(info.Price)
	info.Seller = strings.TrimSpace(info.Seller)
	if !validPrice.MatchString(info.Price) {
		return ErrInvalidPrice
	}
	if info.Seller == "" {
		return ErrInvalidSeller
	}
	return nil
}

// Create attaches a purchasing record to a device. Each device holds at
// most one record; a second create fails with ErrAlreadyExists.
func (r *SQLiteRepository) Create(ctx context.Context, info *Information) error {
	if err := validate(info); err != nil {
		return err
	}
	if info.ID == "" {
		info.ID = GenerateID()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchasing_information
			(purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, cost_centre, seller)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, info.ID, info.DeviceID, info.Price, info.TimestampPurchase, info.TimestampWarrantyEnd, nullInt(info.CostCentre), info.Seller)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return ErrAlreadyExists
		case isForeignKeyViolation(err):
			return ErrDeviceNotFound
		}
		return fmt.Errorf("inserting purchasing record: %w", err)
	}
	return nil
}

// GetByDeviceID returns the device's purchasing record.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Information, error) {
	var info Information
	var costCentre sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, cost_centre, seller
		FROM purchasing_information
		WHERE device_id = ?
	`, deviceID).Scan(&info.ID, &info.DeviceID, &info.Price, &info.TimestampPurchase, &info.TimestampWarrantyEnd, &costCentre, &info.Seller)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying purchasing record: %w", err)
	}
	if costCentre.Valid {
		info.CostCentre = &costCentre.Int64
	}
	return &info, nil
}

// Update corrects an existing record in place. The record ID and device
// binding are immutable.
func (r *SQLiteRepository) Update(ctx context.Context, info *Information) error {
	if err := validate(info); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE purchasing_information
		SET price = ?, timestamp_purchase = ?, timestamp_warranty_end = ?, cost_centre = ?, seller = ?
		WHERE device_id = ?
	`, info.Price, info.TimestampPurchase, info.TimestampWarrantyEnd, nullInt(info.CostCentre), info.Seller, info.DeviceID)
	if err != nil {
		return fmt.Errorf("updating purchasing record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking purchasing record update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the device's purchasing record.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM purchasing_information WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("deleting purchasing record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking purchasing record delete: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all purchasing records, insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Information, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, cost_centre, seller
		FROM purchasing_information
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying purchasing records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only result set

	records := make([]Information, 0)
	for rows.Next() {
		var info Information
		var costCentre sql.NullInt64
		if err := rows.Scan(&info.ID, &info.DeviceID, &info.Price, &info.TimestampPurchase, &info.TimestampWarrantyEnd, &costCentre, &info.Seller); err != nil {
			return nil, fmt.Errorf("scanning purchasing record: %w", err)
		}
		if costCentre.Valid {
			info.CostCentre = &costCentre.Int64
		}
		records = append(records, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating purchasing records: %w", err)
	}
	return records, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
