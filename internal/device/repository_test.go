package device

import (
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the devices table and
// the dependent transaction tables, so the seeded-history path and FK
// cascades are exercised the same way they are in production.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "device-test-*.db")
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
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying device migration: %v", err)
	}

	return db
}

// testDevice returns a valid device for tests, with a unique serial number.
func testDevice(id, serial string) *Device {
	return &Device{
		ID:              id,
		Title:           "ThinkPad X1 Carbon",
		Type:            DeviceTypeLaptop,
		Description:     "Gen 11, 32 GB RAM",
		RZUsernameBuyer: "fswalther",
		SerialNumber:    serial,
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := t.Context()

	dev := testDevice("dev-aaaa0001", "SN-001")
	if err := repo.Create(ctx, dev, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if dev.CreatedAt.IsZero() || dev.UpdatedAt.IsZero() {
		t.Error("Create should set timestamps")
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "dev-aaaa0001")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Title != dev.Title || got.SerialNumber != "SN-001" || got.Type != DeviceTypeLaptop {
			t.Errorf("GetByID returned %+v, want %+v", got, dev)
		}
	})

	t.Run("GetBySerialNumber", func(t *testing.T) {
		got, err := repo.GetBySerialNumber(ctx, "SN-001")
		if err != nil {
			t.Fatalf("GetBySerialNumber failed: %v", err)
		}
		if got.ID != "dev-aaaa0001" {
			t.Errorf("GetBySerialNumber returned ID %q, want dev-aaaa0001", got.ID)
		}
	})

	t.Run("unknown ID", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "dev-missing")
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("error = %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestRepository_UniqueConstraints(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := t.Context()

	if err := repo.Create(ctx, testDevice("dev-aaaa0001", "SN-001"), nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("duplicate ID", func(t *testing.T) {
		err := repo.Create(ctx, testDevice("dev-aaaa0001", "SN-other"), nil)
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("duplicate serial number", func(t *testing.T) {
		err := repo.Create(ctx, testDevice("dev-aaaa0002", "SN-001"), nil)
		if !errors.Is(err, ErrSerialNumberExists) {
			t.Errorf("error = %v, want ErrSerialNumberExists", err)
		}
	})

	t.Run("serial collision on update", func(t *testing.T) {
		second := testDevice("dev-aaaa0003", "SN-003")
		if err := repo.Create(ctx, second, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		second.SerialNumber = "SN-001"
		if err := repo.Update(ctx, second); !errors.Is(err, ErrSerialNumberExists) {
			t.Errorf("error = %v, want ErrSerialNumberExists", err)
		}
	})
}

func TestRepository_SeededHistory(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := t.Context()

	t.Run("owner and location seeds in one transaction", func(t *testing.T) {
		dev := testDevice("dev-bbbb0001", "SN-B01")
		seed := &InitialAssignment{Owner: "jdoe", RoomCode: "R-2.014", Timestamp: 1717243200}
		if err := repo.Create(ctx, dev, seed); err != nil {
			t.Fatalf("Create with seed failed: %v", err)
		}

		var owner string
		var ownerTS int64
		err := db.QueryRow(
			`SELECT rz_username, timestamp_owner_since FROM owner_transactions WHERE device_id = ?`,
			dev.ID,
		).Scan(&owner, &ownerTS)
		if err != nil {
			t.Fatalf("reading seeded owner row: %v", err)
		}
		if owner != "jdoe" || ownerTS != 1717243200 {
			t.Errorf("seeded owner = (%q, %d), want (jdoe, 1717243200)", owner, ownerTS)
		}

		var room string
		err = db.QueryRow(
			`SELECT room_code FROM location_transactions WHERE device_id = ?`, dev.ID,
		).Scan(&room)
		if err != nil {
			t.Fatalf("reading seeded location row: %v", err)
		}
		if room != "R-2.014" {
			t.Errorf("seeded room = %q, want R-2.014", room)
		}
	})

	t.Run("zero seed timestamp defaults to now", func(t *testing.T) {
		before := time.Now().Unix()
		dev := testDevice("dev-bbbb0002", "SN-B02")
		if err := repo.Create(ctx, dev, &InitialAssignment{Owner: "jdoe"}); err != nil {
			t.Fatalf("Create with seed failed: %v", err)
		}
		after := time.Now().Unix()

		var ts int64
		if err := db.QueryRow(
			`SELECT timestamp_owner_since FROM owner_transactions WHERE device_id = ?`, dev.ID,
		).Scan(&ts); err != nil {
			t.Fatalf("reading seeded owner row: %v", err)
		}
		if ts < before || ts > after {
			t.Errorf("seed timestamp %d not in [%d, %d]", ts, before, after)
		}
	})

	t.Run("owner-only seed writes no location row", func(t *testing.T) {
		dev := testDevice("dev-bbbb0003", "SN-B03")
		if err := repo.Create(ctx, dev, &InitialAssignment{Owner: "jdoe"}); err != nil {
			t.Fatalf("Create with seed failed: %v", err)
		}

		var count int
		if err := db.QueryRow(
			`SELECT COUNT(*) FROM location_transactions WHERE device_id = ?`, dev.ID,
		).Scan(&count); err != nil {
			t.Fatalf("counting location rows: %v", err)
		}
		if count != 0 {
			t.Errorf("location rows = %d, want 0", count)
		}
	})
}

func TestRepository_ListFilters(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := t.Context()

	t.Run("empty inventory yields empty slice", func(t *testing.T) {
		devices, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if devices == nil {
			t.Fatal("List returned nil slice, want empty")
		}
		if len(devices) != 0 {
			t.Fatalf("expected 0 devices, got %d", len(devices))
		}
	})

	laptop := testDevice("dev-cccc0001", "SN-C01")
	monitor := testDevice("dev-cccc0002", "SN-C02")
	monitor.Type = DeviceTypeMonitor
	monitor.RZUsernameBuyer = "jdoe"

	for _, d := range []*Device{laptop, monitor} {
		if err := repo.Create(ctx, d, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("List preserves registration order", func(t *testing.T) {
		devices, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(devices) != 2 {
			t.Fatalf("List returned %d devices, want 2", len(devices))
		}
		if devices[0].ID != "dev-cccc0001" || devices[1].ID != "dev-cccc0002" {
			t.Errorf("List order = [%s, %s]", devices[0].ID, devices[1].ID)
		}
	})

	t.Run("ListByType", func(t *testing.T) {
		devices, err := repo.ListByType(ctx, DeviceTypeMonitor)
		if err != nil {
			t.Fatalf("ListByType failed: %v", err)
		}
		if len(devices) != 1 || devices[0].ID != "dev-cccc0002" {
			t.Errorf("ListByType returned %+v, want only dev-cccc0002", devices)
		}
	})

	t.Run("ListByBuyer", func(t *testing.T) {
		devices, err := repo.ListByBuyer(ctx, "jdoe")
		if err != nil {
			t.Fatalf("ListByBuyer failed: %v", err)
		}
		if len(devices) != 1 || devices[0].ID != "dev-cccc0002" {
			t.Errorf("ListByBuyer returned %+v, want only dev-cccc0002", devices)
		}
	})

	t.Run("Count", func(t *testing.T) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Count = %d, want 2", count)
		}
	})
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := t.Context()

	dev := testDevice("dev-dddd0001", "SN-D01")
	if err := repo.Create(ctx, dev, &InitialAssignment{Owner: "jdoe", RoomCode: "R-1.001"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("Update changes metadata", func(t *testing.T) {
		dev.Title = "ThinkPad X1 Carbon (reimaged)"
		dev.Description = "reinstalled 2026-06"
		if err := repo.Update(ctx, dev); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.GetByID(ctx, dev.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Title != dev.Title || got.Description != dev.Description {
			t.Errorf("Update not persisted: got %+v", got)
		}
	})

	t.Run("Update unknown device", func(t *testing.T) {
		ghost := testDevice("dev-missing", "SN-GHOST")
		if err := repo.Update(ctx, ghost); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("Delete cascades to history", func(t *testing.T) {
		if err := repo.Delete(ctx, dev.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		var owners, locations int
		if err := db.QueryRow(`SELECT COUNT(*) FROM owner_transactions WHERE device_id = ?`, dev.ID).Scan(&owners); err != nil {
			t.Fatalf("counting owner rows: %v", err)
		}
		if err := db.QueryRow(`SELECT COUNT(*) FROM location_transactions WHERE device_id = ?`, dev.ID).Scan(&locations); err != nil {
			t.Fatalf("counting location rows: %v", err)
		}
		if owners != 0 || locations != 0 {
			t.Errorf("history rows after delete = (%d, %d), want (0, 0)", owners, locations)
		}
	})

	t.Run("Delete unknown device", func(t *testing.T) {
		if err := repo.Delete(ctx, "dev-missing"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("error = %v, want ErrDeviceNotFound", err)
		}
	})
}
