// Package backup moves the inventory in and out of the database as a
// single JSON snapshot: devices, both transaction streams and purchasing
// information. User accounts are deliberately excluded so a snapshot can
// be loaded into another instance without carrying credentials.
//
// Import merges: rows that collide with existing data (same device ID,
// serial number, transaction seq or purchasing record) are skipped and
// counted, never overwritten. Purge removes all inventory data but keeps
// users and the audit trail.
package backup
