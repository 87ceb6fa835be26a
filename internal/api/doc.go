// Package api provides the HTTP REST API and WebSocket server for the
// inventory service.
//
// It exposes the device registry, the owner/location transaction streams
// and their latest-value projections, purchasing information, user and
// session management, backup (export/import/purge), the audit trail, and
// a WebSocket feed of inventory change events.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// All routes except /api/v1/health and /api/v1/login require a bearer
// token. Error responses carry a single-field JSON body {"detail": "..."}.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
