package device_test

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/ledger"
)

// setupIntegrationDB creates a temporary SQLite database with the devices
// table and both transaction tables, mirroring the production migration.
func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "inventory-integration-*.db")
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

	schema := `
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
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// TestDeviceLifecycleWithHistory walks a device through its full life:
// registration with a seeded first owner, handover, relocation, and
// finally removal with cascading history cleanup.
func TestDeviceLifecycleWithHistory(t *testing.T) {
	db := setupIntegrationDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	history := ledger.NewSQLiteRepository(db)
	ctx := t.Context()

	dev := &device.Device{
		Title:           "MacBook Pro 14",
		Type:            device.DeviceTypeLaptop,
		RZUsernameBuyer: "fswalther",
		SerialNumber:    "C02XL0GZJGH5",
	}
	seed := &device.InitialAssignment{Owner: "fswalther", RoomCode: "R-1.101", Timestamp: 1700000000}
	if err := registry.CreateDevice(ctx, dev, seed); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	t.Run("seed is visible through the ledger", func(t *testing.T) {
		owner, err := history.LatestOwner(ctx, dev.ID)
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if owner.RZUsername != "fswalther" {
			t.Errorf("first owner = %q, want fswalther", owner.RZUsername)
		}

		loc, err := history.LatestLocation(ctx, dev.ID)
		if err != nil {
			t.Fatalf("LatestLocation failed: %v", err)
		}
		if loc.RoomCode != "R-1.101" {
			t.Errorf("first room = %q, want R-1.101", loc.RoomCode)
		}
	})

	t.Run("handover moves current owner", func(t *testing.T) {
		if _, err := history.AppendOwner(ctx, dev.ID, "jdoe", 1710000000); err != nil {
			t.Fatalf("AppendOwner failed: %v", err)
		}

		owner, err := history.LatestOwner(ctx, dev.ID)
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if owner.RZUsername != "jdoe" {
			t.Errorf("current owner = %q, want jdoe", owner.RZUsername)
		}

		// The seed row is still in the history.
		all, err := history.ListOwner(ctx, dev.ID, 0)
		if err != nil {
			t.Fatalf("ListOwner failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("owner history length = %d, want 2", len(all))
		}
	})

	t.Run("relocation leaves ownership untouched", func(t *testing.T) {
		if _, err := history.AppendLocation(ctx, dev.ID, "R-3.020", 1720000000); err != nil {
			t.Fatalf("AppendLocation failed: %v", err)
		}

		loc, err := history.LatestLocation(ctx, dev.ID)
		if err != nil {
			t.Fatalf("LatestLocation failed: %v", err)
		}
		if loc.RoomCode != "R-3.020" {
			t.Errorf("current room = %q, want R-3.020", loc.RoomCode)
		}

		owner, err := history.LatestOwner(ctx, dev.ID)
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if owner.RZUsername != "jdoe" {
			t.Errorf("owner changed on relocation: %q", owner.RZUsername)
		}
	})

	t.Run("delete removes device and history together", func(t *testing.T) {
		if err := registry.DeleteDevice(ctx, dev.ID); err != nil {
			t.Fatalf("DeleteDevice failed: %v", err)
		}

		if _, err := registry.GetDevice(ctx, dev.ID); !errors.Is(err, device.ErrDeviceNotFound) {
			t.Errorf("GetDevice error = %v, want ErrDeviceNotFound", err)
		}
		if _, err := history.LatestOwner(ctx, dev.ID); !errors.Is(err, ledger.ErrDeviceNotFound) {
			t.Errorf("LatestOwner error = %v, want ledger.ErrDeviceNotFound", err)
		}
	})
}

// TestBackdatedHandover verifies that a late-arriving paper record does not
// displace a newer ownership entry.
func TestBackdatedHandover(t *testing.T) {
	db := setupIntegrationDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	history := ledger.NewSQLiteRepository(db)
	ctx := t.Context()

	dev := &device.Device{
		Title:           "Dell U2723QE",
		Type:            device.DeviceTypeMonitor,
		RZUsernameBuyer: "fswalther",
		SerialNumber:    "CN-0H1GJK",
	}
	if err := registry.CreateDevice(ctx, dev, &device.InitialAssignment{Owner: "current", Timestamp: 1720000000}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	// A handover form from years ago is entered after the fact.
	if _, err := history.AppendOwner(ctx, dev.ID, "previous", 1600000000); err != nil {
		t.Fatalf("AppendOwner failed: %v", err)
	}

	owner, err := history.LatestOwner(ctx, dev.ID)
	if err != nil {
		t.Fatalf("LatestOwner failed: %v", err)
	}
	if owner.RZUsername != "current" {
		t.Errorf("current owner = %q, want current (backdated entry must not win)", owner.RZUsername)
	}
}
