package backup

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/ledger"
	"github.com/fswalther/inventory-core/internal/purchase"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "backup-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE users (
			id                TEXT PRIMARY KEY,
			rz_username       TEXT NOT NULL UNIQUE,
			full_name         TEXT NOT NULL,
			organisation_unit TEXT NOT NULL DEFAULT '',
			role              TEXT NOT NULL DEFAULT 'user',
			is_active         INTEGER NOT NULL DEFAULT 1,
			password_hash     TEXT NOT NULL,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		) STRICT;

		CREATE TABLE devices (
			device_id         TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			device_type       TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			accessories       TEXT NOT NULL DEFAULT '',
			rz_username_buyer TEXT NOT NULL,
			serial_number     TEXT NOT NULL UNIQUE,
			image_url         TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		) STRICT;

		CREATE TABLE owner_transactions (
			seq                   INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id             TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			rz_username           TEXT NOT NULL,
			timestamp_owner_since INTEGER NOT NULL
		) STRICT;

		CREATE TABLE location_transactions (
			seq                     INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id               TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			room_code               TEXT NOT NULL,
			timestamp_located_since INTEGER NOT NULL
		) STRICT;

		CREATE TABLE purchasing_information (
			purchasing_information_id TEXT PRIMARY KEY,
			device_id                 TEXT NOT NULL UNIQUE REFERENCES devices(device_id) ON DELETE CASCADE,
			price                     TEXT NOT NULL,
			timestamp_purchase        INTEGER NOT NULL,
			timestamp_warranty_end    INTEGER NOT NULL,
			cost_centre               INTEGER,
			seller                    TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying backup migration: %v", err)
	}

	return db
}

func seedInventory(t *testing.T, db *sql.DB) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO users (id, rz_username, full_name, password_hash, created_at, updated_at)
			VALUES ('usr-aaaa0001', 'fswalther', 'F. S. Walther', 'x', ?, ?)`, []any{now, now}},
		{`INSERT INTO devices (device_id, title, device_type, rz_username_buyer, serial_number, created_at, updated_at)
			VALUES ('dev-11111111', 'ThinkPad X1 Carbon', 'laptop', 'fswalther', 'PF-3XK9TQ', ?, ?)`, []any{now, now}},
		{`INSERT INTO devices (device_id, title, device_type, rz_username_buyer, serial_number, created_at, updated_at)
			VALUES ('dev-22222222', 'Dell U2723QE', 'monitor', 'fswalther', 'CN-0H2J4K', ?, ?)`, []any{now, now}},
		{`INSERT INTO owner_transactions (device_id, rz_username, timestamp_owner_since)
			VALUES ('dev-11111111', 'fswalther', 1000)`, nil},
		{`INSERT INTO owner_transactions (device_id, rz_username, timestamp_owner_since)
			VALUES ('dev-11111111', 'mbauer', 2000)`, nil},
		{`INSERT INTO location_transactions (device_id, room_code, timestamp_located_since)
			VALUES ('dev-22222222', 'R-2.014', 1500)`, nil},
		{`INSERT INTO purchasing_information (purchasing_information_id, device_id, price, timestamp_purchase, timestamp_warranty_end, seller)
			VALUES ('pur-aaaa0001', 'dev-11111111', '1249.99', 1000, 2000, 'Campus IT GmbH')`, nil},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.sql, s.args...); err != nil {
			t.Fatalf("seeding inventory: %v", err)
		}
	}
}

func TestExport(t *testing.T) {
	db := testDB(t)
	seedInventory(t, db)
	svc := NewService(db)

	snap, err := svc.Export(t.Context())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(snap.Devices) != 2 {
		t.Errorf("expected 2 devices, got %d", len(snap.Devices))
	}
	if len(snap.OwnerTransactions) != 2 {
		t.Errorf("expected 2 owner transactions, got %d", len(snap.OwnerTransactions))
	}
	if len(snap.LocationTransactions) != 1 {
		t.Errorf("expected 1 location transaction, got %d", len(snap.LocationTransactions))
	}
	if len(snap.PurchasingRecords) != 1 {
		t.Errorf("expected 1 purchasing record, got %d", len(snap.PurchasingRecords))
	}
	if snap.ExportedAt == "" {
		t.Error("expected exported_at to be set")
	}
	if snap.Devices[0].ID != "dev-11111111" || snap.Devices[0].Type != device.DeviceTypeLaptop {
		t.Errorf("unexpected first device: %+v", snap.Devices[0])
	}
}

func TestImportMergesAndSkips(t *testing.T) {
	db := testDB(t)
	seedInventory(t, db)
	svc := NewService(db)

	snap := &Snapshot{
		Devices: []device.Device{
			// Conflicts with existing dev-11111111: skipped
			{ID: "dev-11111111", Title: "Duplicate", Type: device.DeviceTypeLaptop,
				RZUsernameBuyer: "someone", SerialNumber: "OTHER-SN"},
			// New device: imported
			{ID: "dev-33333333", Title: "iPad Air", Type: device.DeviceTypeTablet,
				RZUsernameBuyer: "mbauer", SerialNumber: "DMPX-1122"},
		},
		OwnerTransactions: []ledger.OwnerTransaction{
			// Seq collides with an existing row: skipped
			{Seq: 1, DeviceID: "dev-11111111", RZUsername: "ghost", TimestampOwnerSince: 1},
			// New seq on imported device: imported
			{Seq: 100, DeviceID: "dev-33333333", RZUsername: "mbauer", TimestampOwnerSince: 3000},
			// Device neither present nor in snapshot: skipped
			{Seq: 101, DeviceID: "dev-unknown1", RZUsername: "nobody", TimestampOwnerSince: 1},
		},
		LocationTransactions: []ledger.LocationTransaction{
			{Seq: 100, DeviceID: "dev-33333333", RoomCode: "R-3.101", TimestampLocatedSince: 3000},
		},
		PurchasingRecords: []purchase.Information{
			// Device already has a record: skipped
			{ID: "pur-bbbb0001", DeviceID: "dev-11111111", Price: "1.00", Seller: "Ghost"},
			// New record: imported
			{ID: "pur-bbbb0002", DeviceID: "dev-33333333", Price: "679.00", Seller: "Campus IT GmbH"},
		},
	}

	result, err := svc.Import(t.Context(), snap)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if result.DevicesImported != 1 || result.DevicesSkipped != 1 {
		t.Errorf("devices: imported=%d skipped=%d", result.DevicesImported, result.DevicesSkipped)
	}
	if result.OwnerTransactionsImported != 1 || result.OwnerTransactionsSkipped != 2 {
		t.Errorf("owner transactions: imported=%d skipped=%d",
			result.OwnerTransactionsImported, result.OwnerTransactionsSkipped)
	}
	if result.LocationTransactionsImported != 1 {
		t.Errorf("location transactions: imported=%d", result.LocationTransactionsImported)
	}
	if result.PurchasingImported != 1 || result.PurchasingSkipped != 1 {
		t.Errorf("purchasing: imported=%d skipped=%d", result.PurchasingImported, result.PurchasingSkipped)
	}

	// Existing data must be untouched by the skipped conflicts
	var title string
	if err := db.QueryRow(`SELECT title FROM devices WHERE device_id = 'dev-11111111'`).Scan(&title); err != nil {
		t.Fatalf("reading device: %v", err)
	}
	if title != "ThinkPad X1 Carbon" {
		t.Errorf("existing device overwritten: %s", title)
	}

	var owner string
	if err := db.QueryRow(`SELECT rz_username FROM owner_transactions WHERE seq = 1`).Scan(&owner); err != nil {
		t.Fatalf("reading owner transaction: %v", err)
	}
	if owner != "fswalther" {
		t.Errorf("existing transaction overwritten: %s", owner)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	src := testDB(t)
	seedInventory(t, src)
	dst := testDB(t)

	snap, err := NewService(src).Export(t.Context())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	result, err := NewService(dst).Import(t.Context(), snap)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.DevicesImported != 2 || result.OwnerTransactionsImported != 2 ||
		result.LocationTransactionsImported != 1 || result.PurchasingImported != 1 {
		t.Errorf("unexpected import result: %+v", result)
	}

	again, err := NewService(dst).Export(t.Context())
	if err != nil {
		t.Fatalf("re-export failed: %v", err)
	}
	if len(again.Devices) != 2 || len(again.OwnerTransactions) != 2 {
		t.Errorf("round trip lost rows: %d devices, %d owner transactions",
			len(again.Devices), len(again.OwnerTransactions))
	}
}

func TestPurgeKeepsUsers(t *testing.T) {
	db := testDB(t)
	seedInventory(t, db)
	svc := NewService(db)

	if err := svc.Purge(t.Context()); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	counts := map[string]int{}
	for _, table := range []string{"devices", "owner_transactions", "location_transactions", "purchasing_information", "users"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		counts[table] = n
	}
	for _, table := range []string{"devices", "owner_transactions", "location_transactions", "purchasing_information"} {
		if counts[table] != 0 {
			t.Errorf("expected %s purged, found %d rows", table, counts[table])
		}
	}
	if counts["users"] != 1 {
		t.Errorf("expected users preserved, found %d", counts["users"])
	}
}
