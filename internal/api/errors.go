package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body of every error reply. Clients branch on the
// HTTP status; detail is for humans and log lines.
type errorResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeDetail writes an error response with the given status and detail text.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusBadRequest, detail)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusNotFound, detail)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusUnauthorized, detail)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusForbidden, detail)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusConflict, detail)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, detail string) {
	writeDetail(w, http.StatusInternalServerError, detail)
}
