// Package purchase manages purchasing information attached to devices.
//
// Each device carries at most one purchasing record: price, seller,
// purchase and warranty-end timestamps, and an optional cost centre.
// The record is keyed by device, created once and corrected in place,
// unlike the append-only transaction streams in the ledger package.
package purchase
