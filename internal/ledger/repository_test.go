package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the devices table and
// both transaction tables applied. Foreign keys are ON so the FK path is
// exercised the same way it is in production.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "ledger-test-*.db")
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
		t.Fatalf("applying ledger migration: %v", err)
	}

	return db
}

// seedTestDevice inserts a bare device row so transaction FKs resolve.
func seedTestDevice(t *testing.T, db *sql.DB, deviceID string) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO devices (device_id, title, device_type, rz_username_buyer, serial_number, created_at, updated_at)
		VALUES (?, 'Test Laptop', 'laptop', 'fswalther', ?, ?, ?)
	`, deviceID, "SN-"+deviceID, now, now)
	if err != nil {
		t.Fatalf("seeding test device %s: %v", deviceID, err)
	}
}

func TestAppendOwner(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-11111111")

	t.Run("explicit timestamp persists", func(t *testing.T) {
		entry, err := repo.AppendOwner(t.Context(), "dev-11111111", "fswalther", 1717243200)
		if err != nil {
			t.Fatalf("AppendOwner failed: %v", err)
		}
		if entry.Seq == 0 {
			t.Error("expected non-zero seq")
		}
		if entry.RZUsername != "fswalther" {
			t.Errorf("expected owner fswalther, got %s", entry.RZUsername)
		}
		if entry.TimestampOwnerSince != 1717243200 {
			t.Errorf("expected timestamp 1717243200, got %d", entry.TimestampOwnerSince)
		}
	})

	t.Run("zero timestamp defaults to now", func(t *testing.T) {
		before := time.Now().Unix()
		entry, err := repo.AppendOwner(t.Context(), "dev-11111111", "mbauer", 0)
		if err != nil {
			t.Fatalf("AppendOwner failed: %v", err)
		}
		after := time.Now().Unix()
		if entry.TimestampOwnerSince < before || entry.TimestampOwnerSince > after {
			t.Errorf("timestamp %d outside [%d, %d]", entry.TimestampOwnerSince, before, after)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := repo.AppendOwner(t.Context(), "dev-missing1", "fswalther", 0)
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})

	t.Run("empty owner rejected", func(t *testing.T) {
		_, err := repo.AppendOwner(t.Context(), "dev-11111111", "  ", 0)
		if !errors.Is(err, ErrInvalidOwner) {
			t.Errorf("expected ErrInvalidOwner, got %v", err)
		}
	})
}

func TestLatestOwner(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-22222222")

	t.Run("no history is distinct from no device", func(t *testing.T) {
		_, err := repo.LatestOwner(t.Context(), "dev-22222222")
		if !errors.Is(err, ErrNoOwnerHistory) {
			t.Errorf("expected ErrNoOwnerHistory, got %v", err)
		}

		_, err = repo.LatestOwner(t.Context(), "dev-missing1")
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})

	t.Run("greatest timestamp wins regardless of insert order", func(t *testing.T) {
		if _, err := repo.AppendOwner(t.Context(), "dev-22222222", "late-entry", 2000); err != nil {
			t.Fatalf("append: %v", err)
		}
		// Backdated entry inserted afterwards must not become latest
		if _, err := repo.AppendOwner(t.Context(), "dev-22222222", "backdated", 1000); err != nil {
			t.Fatalf("append: %v", err)
		}

		latest, err := repo.LatestOwner(t.Context(), "dev-22222222")
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if latest.RZUsername != "late-entry" {
			t.Errorf("expected late-entry, got %s", latest.RZUsername)
		}
	})

	t.Run("equal timestamps tie-break on seq", func(t *testing.T) {
		if _, err := repo.AppendOwner(t.Context(), "dev-22222222", "first-at-3000", 3000); err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, err := repo.AppendOwner(t.Context(), "dev-22222222", "second-at-3000", 3000); err != nil {
			t.Fatalf("append: %v", err)
		}

		latest, err := repo.LatestOwner(t.Context(), "dev-22222222")
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if latest.RZUsername != "second-at-3000" {
			t.Errorf("expected second-at-3000, got %s", latest.RZUsername)
		}
	})
}

func TestListOwner(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-33333333")

	t.Run("empty history yields empty slice", func(t *testing.T) {
		entries, err := repo.ListOwner(t.Context(), "dev-33333333", 0)
		if err != nil {
			t.Fatalf("ListOwner failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected 0 entries, got %d", len(entries))
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := repo.ListOwner(t.Context(), "dev-missing1", 0)
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})

	t.Run("ordered by effective time then seq", func(t *testing.T) {
		for _, a := range []struct {
			owner string
			ts    int64
		}{
			{"second", 2000},
			{"first", 1000},
			{"third", 3000},
		} {
			if _, err := repo.AppendOwner(t.Context(), "dev-33333333", a.owner, a.ts); err != nil {
				t.Fatalf("append %s: %v", a.owner, err)
			}
		}

		entries, err := repo.ListOwner(t.Context(), "dev-33333333", 0)
		if err != nil {
			t.Fatalf("ListOwner failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		for i, want := range []string{"first", "second", "third"} {
			if entries[i].RZUsername != want {
				t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].RZUsername)
			}
		}
	})

	t.Run("limit clamps result", func(t *testing.T) {
		entries, err := repo.ListOwner(t.Context(), "dev-33333333", 2)
		if err != nil {
			t.Fatalf("ListOwner failed: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(entries))
		}
	})

	t.Run("zero limit returns the full stream", func(t *testing.T) {
		seedTestDevice(t, db, "dev-44444444")

		const total = 150
		for i := range total {
			if _, err := repo.AppendOwner(t.Context(), "dev-44444444", fmt.Sprintf("owner%03d", i), int64(1000+i)); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}

		entries, err := repo.ListOwner(t.Context(), "dev-44444444", 0)
		if err != nil {
			t.Fatalf("ListOwner failed: %v", err)
		}
		if len(entries) != total {
			t.Fatalf("expected %d entries, got %d", total, len(entries))
		}
		if entries[0].RZUsername != "owner000" || entries[total-1].RZUsername != "owner149" {
			t.Errorf("stream out of order: first %s, last %s", entries[0].RZUsername, entries[total-1].RZUsername)
		}

		locations, err := repo.ListLocation(t.Context(), "dev-44444444", -3)
		if err != nil {
			t.Fatalf("ListLocation failed: %v", err)
		}
		if len(locations) != 0 {
			t.Errorf("expected empty location stream, got %d entries", len(locations))
		}
	})
}

func TestOwnerCorrections(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-44444444")

	entry, err := repo.AppendOwner(t.Context(), "dev-44444444", "wrong-user", 1000)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	t.Run("update rewrites owner and timestamp", func(t *testing.T) {
		updated, err := repo.UpdateOwner(t.Context(), "dev-44444444", entry.Seq, "right-user", 1500)
		if err != nil {
			t.Fatalf("UpdateOwner failed: %v", err)
		}
		if updated.RZUsername != "right-user" || updated.TimestampOwnerSince != 1500 {
			t.Errorf("unexpected entry after update: %+v", updated)
		}

		latest, err := repo.LatestOwner(t.Context(), "dev-44444444")
		if err != nil {
			t.Fatalf("LatestOwner failed: %v", err)
		}
		if latest.RZUsername != "right-user" {
			t.Errorf("expected right-user, got %s", latest.RZUsername)
		}
	})

	t.Run("update unknown seq", func(t *testing.T) {
		_, err := repo.UpdateOwner(t.Context(), "dev-44444444", 99999, "nobody", 1)
		if !errors.Is(err, ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound, got %v", err)
		}
	})

	t.Run("update seq scoped to its device", func(t *testing.T) {
		seedTestDevice(t, db, "dev-other001")
		_, err := repo.UpdateOwner(t.Context(), "dev-other001", entry.Seq, "nobody", 1)
		if !errors.Is(err, ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound, got %v", err)
		}
	})

	t.Run("delete removes entry", func(t *testing.T) {
		if err := repo.DeleteOwner(t.Context(), "dev-44444444", entry.Seq); err != nil {
			t.Fatalf("DeleteOwner failed: %v", err)
		}
		_, err := repo.LatestOwner(t.Context(), "dev-44444444")
		if !errors.Is(err, ErrNoOwnerHistory) {
			t.Errorf("expected ErrNoOwnerHistory after delete, got %v", err)
		}
		if err := repo.DeleteOwner(t.Context(), "dev-44444444", entry.Seq); !errors.Is(err, ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound on second delete, got %v", err)
		}
	})
}

func TestLocationStream(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-55555555")

	t.Run("independent from ownership", func(t *testing.T) {
		if _, err := repo.AppendLocation(t.Context(), "dev-55555555", "R-2.014", 1000); err != nil {
			t.Fatalf("AppendLocation failed: %v", err)
		}

		loc, err := repo.LatestLocation(t.Context(), "dev-55555555")
		if err != nil {
			t.Fatalf("LatestLocation failed: %v", err)
		}
		if loc.RoomCode != "R-2.014" {
			t.Errorf("expected R-2.014, got %s", loc.RoomCode)
		}

		// Ownership stream untouched by the location append
		if _, err := repo.LatestOwner(t.Context(), "dev-55555555"); !errors.Is(err, ErrNoOwnerHistory) {
			t.Errorf("expected ErrNoOwnerHistory, got %v", err)
		}
	})

	t.Run("no history sentinel", func(t *testing.T) {
		seedTestDevice(t, db, "dev-66666666")
		_, err := repo.LatestLocation(t.Context(), "dev-66666666")
		if !errors.Is(err, ErrNoLocationHistory) {
			t.Errorf("expected ErrNoLocationHistory, got %v", err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		if _, err := repo.AppendLocation(t.Context(), "dev-missing1", "R-1.001", 0); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
		if _, err := repo.ListLocation(t.Context(), "dev-missing1", 0); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})

	t.Run("empty room code rejected", func(t *testing.T) {
		_, err := repo.AppendLocation(t.Context(), "dev-55555555", "", 0)
		if !errors.Is(err, ErrInvalidRoomCode) {
			t.Errorf("expected ErrInvalidRoomCode, got %v", err)
		}
	})

	t.Run("corrections", func(t *testing.T) {
		entry, err := repo.AppendLocation(t.Context(), "dev-55555555", "R-9.999", 2000)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		updated, err := repo.UpdateLocation(t.Context(), "dev-55555555", entry.Seq, "R-3.101", 2500)
		if err != nil {
			t.Fatalf("UpdateLocation failed: %v", err)
		}
		if updated.RoomCode != "R-3.101" {
			t.Errorf("expected R-3.101, got %s", updated.RoomCode)
		}
		if err := repo.DeleteLocation(t.Context(), "dev-55555555", entry.Seq); err != nil {
			t.Fatalf("DeleteLocation failed: %v", err)
		}
		if err := repo.DeleteLocation(t.Context(), "dev-55555555", entry.Seq); !errors.Is(err, ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}

func TestDeviceDeleteCascades(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	seedTestDevice(t, db, "dev-77777777")

	if _, err := repo.AppendOwner(t.Context(), "dev-77777777", "fswalther", 1000); err != nil {
		t.Fatalf("append owner: %v", err)
	}
	if _, err := repo.AppendLocation(t.Context(), "dev-77777777", "R-2.014", 1000); err != nil {
		t.Fatalf("append location: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM devices WHERE device_id = 'dev-77777777'`); err != nil {
		t.Fatalf("deleting device: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM owner_transactions WHERE device_id = 'dev-77777777'`).Scan(&count); err != nil {
		t.Fatalf("counting owner transactions: %v", err)
	}
	if count != 0 {
		t.Errorf("expected owner transactions removed with device, found %d", count)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM location_transactions WHERE device_id = 'dev-77777777'`).Scan(&count); err != nil {
		t.Fatalf("counting location transactions: %v", err)
	}
	if count != 0 {
		t.Errorf("expected location transactions removed with device, found %d", count)
	}
}
