package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fswalther/inventory-core/internal/audit"
	"github.com/fswalther/inventory-core/internal/backup"
)

// handleExport streams the full inventory as a JSON snapshot (admin only).
// User accounts are not part of the snapshot.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backup.Export(r.Context())
	if err != nil {
		s.logger.Error("export failed", "error", err)
		writeInternalError(w, "export failed")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("export", "inventory", "", claims.Subject, map[string]any{
		"devices": len(snap.Devices),
	})

	w.Header().Set("Content-Disposition", `attachment; filename="inventory-export.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// handleImport merges a JSON snapshot into the inventory (admin only).
// Conflicting rows are skipped, never overwritten; the response reports
// per-table imported/skipped counts.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap backup.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeBadRequest(w, "invalid snapshot JSON")
		return
	}

	result, err := s.backup.Import(r.Context(), &snap)
	if err != nil {
		s.logger.Error("import failed", "error", err)
		writeInternalError(w, "import failed")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("inventory imported",
		"devices_imported", result.DevicesImported,
		"devices_skipped", result.DevicesSkipped,
		"imported_by", claims.Subject,
	)
	s.auditLog("import", "inventory", "", claims.Subject, map[string]any{
		"devices_imported": result.DevicesImported,
		"devices_skipped":  result.DevicesSkipped,
	})

	writeJSON(w, http.StatusOK, result)
}

// handlePurge deletes all inventory data, keeping user accounts and the
// audit trail (admin only). The confirm query parameter must be the
// literal string "purge" as a guard against accidental calls.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "purge" {
		writeBadRequest(w, `confirm=purge query parameter is required`)
		return
	}

	if err := s.backup.Purge(r.Context()); err != nil {
		s.logger.Error("purge failed", "error", err)
		writeInternalError(w, "purge failed")
		return
	}

	if err := s.registry.RefreshCache(r.Context()); err != nil {
		s.logger.Warn("cache refresh after purge failed", "error", err)
	}

	claims := claimsFromContext(r.Context())
	s.logger.Warn("inventory purged", "purged_by", claims.Subject)
	s.auditLog("purge", "inventory", "", claims.Subject, nil)

	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

// handleListAuditLogs returns paginated audit trail entries (admin only).
//
// Query parameters:
//   - action: filter by action type (create, update, delete, append, login)
//   - entity_type: filter by entity type
//   - entity_id: filter by specific entity ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail is not enabled")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))   //nolint:errcheck // zero means default
	offset, _ := strconv.Atoi(q.Get("offset")) //nolint:errcheck // zero is first page

	result, err := s.auditRepo.List(r.Context(), audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.logger.Error("list audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
