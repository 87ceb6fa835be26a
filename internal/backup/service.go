package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/ledger"
	"github.com/fswalther/inventory-core/internal/purchase"
)

// Snapshot is the full exportable state of the inventory.
type Snapshot struct {
	ExportedAt           string                       `json:"exported_at"`
	Devices              []device.Device              `json:"devices"`
	OwnerTransactions    []ledger.OwnerTransaction    `json:"owner_transactions"`
	LocationTransactions []ledger.LocationTransaction `json:"location_transactions"`
	PurchasingRecords    []purchase.Information       `json:"purchasing_information"`
}

// ImportResult reports what a merge-import did per table.
type ImportResult struct {
	DevicesImported              int `json:"devices_imported"`
	DevicesSkipped               int `json:"devices_skipped"`
	OwnerTransactionsImported    int `json:"owner_transactions_imported"`
	OwnerTransactionsSkipped     int `json:"owner_transactions_skipped"`
	LocationTransactionsImported int `json:"location_transactions_imported"`
	LocationTransactionsSkipped  int `json:"location_transactions_skipped"`
	PurchasingImported           int `json:"purchasing_information_imported"`
	PurchasingSkipped            int `json:"purchasing_information_skipped"`
}

// Service implements export, merge-import and purge over the shared
// database. It reads tables directly rather than going through the
// per-package repositories: a snapshot spans all devices at once.
type Service struct {
	db *sql.DB
}

// NewService creates a backup service backed by db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Export reads the full inventory into a snapshot.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		ExportedAt:           time.Now().UTC().Format(time.RFC3339),
		Devices:              make([]device.Device, 0),
		OwnerTransactions:    make([]ledger.OwnerTransaction, 0),
		LocationTransactions: make([]ledger.LocationTransaction, 0),
		PurchasingRecords:    make([]purchase.Information, 0),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, title, device_type, description, accessories, rz_username_buyer, serial_number, image_url, created_at, updated_at
		FROM devices ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("exporting devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only result set
	for rows.Next() {
		var d device.Device
		var deviceType, createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.Title, &deviceType, &d.Description, &d.Accessories,
			&d.RZUsernameBuyer, &d.SerialNumber, &d.ImageURL, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.Type = device.DeviceType(deviceType)
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		snap.Devices = append(snap.Devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	ownerRows, err := s.db.QueryContext(ctx, `
		SELECT seq, device_id, rz_username, timestamp_owner_since
		FROM owner_transactions ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("exporting owner transactions: %w", err)
	}
	defer ownerRows.Close() //nolint:errcheck // read-only result set
	for ownerRows.Next() {
		var e ledger.OwnerTransaction
		if err := ownerRows.Scan(&e.Seq, &e.DeviceID, &e.RZUsername, &e.TimestampOwnerSince); err != nil {
			return nil, fmt.Errorf("scanning owner transaction: %w", err)
		}
		snap.OwnerTransactions = append(snap.OwnerTransactions, e)
	}
	if err := ownerRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owner transactions: %w", err)
	}

	locRows, err := s.db.QueryContext(ctx, `
		SELECT seq, device_id, room_code, timestamp_located_since
		FROM location_transactions ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("exporting location transactions: %w", err)
	}
	defer locRows.Close() //nolint:errcheck // read-only result set
	for locRows.Next() {
		var e ledger.LocationTransaction
		if err := locRows.Scan(&e.Seq, &e.DeviceID, &e.RoomCode, &e.TimestampLocatedSince); err != nil {
			return nil, fmt.Errorf("scanning location transaction: %w", err)
		}
		snap.LocationTransactions = append(snap.LocationTransactions, e)
	}
	if err := locRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location transactions: %w", err)
	}

	purRows, err := s.db.QueryContext(ctx, `
		SELECT purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, cost_centre, seller
		FROM purchasing_information ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("exporting purchasing information: %w", err)
	}
	defer purRows.Close() //nolint:errcheck // read-only result set
	for purRows.Next() {
		var p purchase.Information
		var costCentre sql.NullInt64
		if err := purRows.Scan(&p.ID, &p.DeviceID, &p.Price, &p.TimestampPurchase,
			&p.TimestampWarrantyEnd, &costCentre, &p.Seller); err != nil {
			return nil, fmt.Errorf("scanning purchasing record: %w", err)
		}
		if costCentre.Valid {
			p.CostCentre = &costCentre.Int64
		}
		snap.PurchasingRecords = append(snap.PurchasingRecords, p)
	}
	if err := purRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating purchasing records: %w", err)
	}

	return snap, nil
}

// Import merges a snapshot into the database in one transaction.
// Conflicting rows are skipped; transactions and purchasing records whose
// device is neither present nor part of the snapshot are skipped too.
func (s *Service) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) { //nolint:gocognit // table-by-table merge is flat, just long
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result := &ImportResult{}

	// All device IDs that will exist after the merge, for FK pre-checks.
	known := make(map[string]bool)
	idRows, err := tx.QueryContext(ctx, `SELECT device_id FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("reading existing device ids: %w", err)
	}
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		known[id] = true
	}
	if err := idRows.Err(); err != nil {
		idRows.Close()
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}
	idRows.Close()

	now := time.Now().UTC()
	for _, d := range snap.Devices {
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		updatedAt := d.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO devices
				(device_id, title, device_type, description, accessories, rz_username_buyer, serial_number, image_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.ID, d.Title, string(d.Type), d.Description, d.Accessories, d.RZUsernameBuyer, d.SerialNumber, d.ImageURL,
			createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("importing device %s: %w", d.ID, err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			result.DevicesImported++
			known[d.ID] = true
		} else {
			result.DevicesSkipped++
		}
	}

	for _, e := range snap.OwnerTransactions {
		if !known[e.DeviceID] {
			result.OwnerTransactionsSkipped++
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO owner_transactions (seq, device_id, rz_username, timestamp_owner_since)
			VALUES (?, ?, ?, ?)
		`, e.Seq, e.DeviceID, e.RZUsername, e.TimestampOwnerSince)
		if err != nil {
			return nil, fmt.Errorf("importing owner transaction %d: %w", e.Seq, err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			result.OwnerTransactionsImported++
		} else {
			result.OwnerTransactionsSkipped++
		}
	}

	for _, e := range snap.LocationTransactions {
		if !known[e.DeviceID] {
			result.LocationTransactionsSkipped++
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO location_transactions (seq, device_id, room_code, timestamp_located_since)
			VALUES (?, ?, ?, ?)
		`, e.Seq, e.DeviceID, e.RoomCode, e.TimestampLocatedSince)
		if err != nil {
			return nil, fmt.Errorf("importing location transaction %d: %w", e.Seq, err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			result.LocationTransactionsImported++
		} else {
			result.LocationTransactionsSkipped++
		}
	}

	for _, p := range snap.PurchasingRecords {
		if !known[p.DeviceID] {
			result.PurchasingSkipped++
			continue
		}
		id := p.ID
		if id == "" {
			id = purchase.GenerateID()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO purchasing_information
				(purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, cost_centre, seller)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, p.DeviceID, p.Price, p.TimestampPurchase, p.TimestampWarrantyEnd, nullInt(p.CostCentre), p.Seller)
		if err != nil {
			return nil, fmt.Errorf("importing purchasing record for %s: %w", p.DeviceID, err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			result.PurchasingImported++
		} else {
			result.PurchasingSkipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return result, nil
}

// Purge deletes all inventory data. Users and the audit trail survive,
// so the purge itself stays accountable.
func (s *Service) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning purge transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Deleting devices cascades to transactions and purchasing records,
	// but delete explicitly so the purge does not depend on FK pragmas.
	for _, table := range []string{"owner_transactions", "location_transactions", "purchasing_information", "devices"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { //nolint:gosec // fixed table list
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing purge: %w", err)
	}
	return nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
