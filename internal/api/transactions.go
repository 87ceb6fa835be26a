package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fswalther/inventory-core/internal/ledger"
)

// appendOwnerRequest is the body for POST .../owner-transactions.
// timestamp_owner_since may be zero or absent; the server then stamps the
// entry with the current time. Past timestamps are accepted so handovers
// recorded on paper can be transcribed later.
type appendOwnerRequest struct {
	RZUsername          string `json:"rz_username"`
	TimestampOwnerSince int64  `json:"timestamp_owner_since"`
}

// appendLocationRequest is the body for POST .../location-transactions.
type appendLocationRequest struct {
	RoomCode              string `json:"room_code"`
	TimestampLocatedSince int64  `json:"timestamp_located_since"`
}

// handleListOwnerTransactions returns a device's ownership stream,
// oldest first.
func (s *Server) handleListOwnerTransactions(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero means the full stream

	entries, err := s.ledger.ListOwner(r.Context(), deviceID, limit)
	if err != nil {
		if errors.Is(err, ledger.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("list owner transactions failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list owner transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries, "count": len(entries)})
}

// handleAppendOwnerTransaction records a new owner for a device.
func (s *Server) handleAppendOwnerTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req appendOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.ledger.AppendOwner(r.Context(), deviceID, req.RZUsername, req.TimestampOwnerSince)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, ledger.ErrInvalidOwner):
			writeBadRequest(w, "rz_username is required")
		default:
			s.logger.Error("append owner transaction failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to append owner transaction")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("append", "owner_transaction", deviceID, claims.Subject, map[string]any{
		"seq":         entry.Seq,
		"rz_username": entry.RZUsername,
	})
	s.hub.Broadcast("transaction.appended", map[string]any{
		"stream":      "owner",
		"transaction": entry,
	})

	writeJSON(w, http.StatusCreated, entry)
}

// handleLatestOwner returns the device's current owner: the stream entry
// with the greatest effective timestamp.
func (s *Server) handleLatestOwner(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	entry, err := s.ledger.LatestOwner(r.Context(), deviceID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, ledger.ErrNoOwnerHistory):
			writeNotFound(w, "device has no owner history")
		default:
			s.logger.Error("latest owner failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to determine current owner")
		}
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateOwnerTransaction corrects a stream entry in place (admin only).
func (s *Server) handleUpdateOwnerTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid transaction seq")
		return
	}

	var req appendOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.ledger.UpdateOwner(r.Context(), deviceID, seq, req.RZUsername, req.TimestampOwnerSince)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			writeNotFound(w, "transaction not found")
		case errors.Is(err, ledger.ErrInvalidOwner):
			writeBadRequest(w, "rz_username is required")
		default:
			s.logger.Error("update owner transaction failed", "device_id", deviceID, "seq", seq, "error", err)
			writeInternalError(w, "failed to update owner transaction")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("correct", "owner_transaction", deviceID, claims.Subject, map[string]any{"seq": seq})

	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteOwnerTransaction removes a stream entry (admin only).
func (s *Server) handleDeleteOwnerTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid transaction seq")
		return
	}

	if err := s.ledger.DeleteOwner(r.Context(), deviceID, seq); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			writeNotFound(w, "transaction not found")
			return
		}
		s.logger.Error("delete owner transaction failed", "device_id", deviceID, "seq", seq, "error", err)
		writeInternalError(w, "failed to delete owner transaction")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("delete", "owner_transaction", deviceID, claims.Subject, map[string]any{"seq": seq})

	w.WriteHeader(http.StatusNoContent)
}

// handleListLocationTransactions returns a device's location stream,
// oldest first.
func (s *Server) handleListLocationTransactions(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero means the full stream

	entries, err := s.ledger.ListLocation(r.Context(), deviceID, limit)
	if err != nil {
		if errors.Is(err, ledger.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("list location transactions failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list location transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries, "count": len(entries)})
}

// handleAppendLocationTransaction records a new location for a device.
func (s *Server) handleAppendLocationTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req appendLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.ledger.AppendLocation(r.Context(), deviceID, req.RoomCode, req.TimestampLocatedSince)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, ledger.ErrInvalidRoomCode):
			writeBadRequest(w, "room_code is required")
		default:
			s.logger.Error("append location transaction failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to append location transaction")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("append", "location_transaction", deviceID, claims.Subject, map[string]any{
		"seq":       entry.Seq,
		"room_code": entry.RoomCode,
	})
	s.hub.Broadcast("transaction.appended", map[string]any{
		"stream":      "location",
		"transaction": entry,
	})

	writeJSON(w, http.StatusCreated, entry)
}

// handleLatestLocation returns the device's current location.
func (s *Server) handleLatestLocation(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	entry, err := s.ledger.LatestLocation(r.Context(), deviceID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, ledger.ErrNoLocationHistory):
			writeNotFound(w, "device has no location history")
		default:
			s.logger.Error("latest location failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to determine current location")
		}
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateLocationTransaction corrects a stream entry in place (admin only).
func (s *Server) handleUpdateLocationTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid transaction seq")
		return
	}

	var req appendLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.ledger.UpdateLocation(r.Context(), deviceID, seq, req.RoomCode, req.TimestampLocatedSince)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			writeNotFound(w, "transaction not found")
		case errors.Is(err, ledger.ErrInvalidRoomCode):
			writeBadRequest(w, "room_code is required")
		default:
			s.logger.Error("update location transaction failed", "device_id", deviceID, "seq", seq, "error", err)
			writeInternalError(w, "failed to update location transaction")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("correct", "location_transaction", deviceID, claims.Subject, map[string]any{"seq": seq})

	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteLocationTransaction removes a stream entry (admin only).
func (s *Server) handleDeleteLocationTransaction(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid transaction seq")
		return
	}

	if err := s.ledger.DeleteLocation(r.Context(), deviceID, seq); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			writeNotFound(w, "transaction not found")
			return
		}
		s.logger.Error("delete location transaction failed", "device_id", deviceID, "seq", seq, "error", err)
		writeInternalError(w, "failed to delete location transaction")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("delete", "location_transaction", deviceID, claims.Subject, map[string]any{"seq": seq})

	w.WriteHeader(http.StatusNoContent)
}
