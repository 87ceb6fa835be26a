// Package ledger implements the append-only transaction log that records
// device ownership and location over time.
//
// The log is the single source of truth for "who has this device" and
// "where is it". A device's current owner is not a column anywhere: it is
// the projection of its ownership stream — the entry with the greatest
// effective timestamp. The same holds for location. History is never
// rewritten by normal operation; handing a device over appends a row.
//
// # Ordering
//
// Entries are ordered by effective timestamp, with the insertion sequence
// number as a tie-breaker. Two entries recorded with the same timestamp
// both persist, and the later-inserted one wins the latest-projection.
// This keeps the projection deterministic without a uniqueness constraint
// that would reject concurrent appends.
//
// # Usage
//
//	log := ledger.NewSQLiteRepository(db)
//
//	// Hand a device to a new owner, effective now
//	entry, err := log.AppendOwner(ctx, "dev-1a2b3c4d", "fswalther", 0)
//
//	// Who has it?
//	current, err := log.LatestOwner(ctx, "dev-1a2b3c4d")
//	if errors.Is(err, ledger.ErrNoOwnerHistory) {
//	    // registered but never assigned
//	}
//
// Admin-only corrections (Update/Delete) exist for fixing mistakes; they
// are deliberately separate from the append path and audited by callers.
package ledger
