package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no access token required; refresh and logout
		// authenticate with the refresh token itself)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Get("/users/me", s.handleMe)

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Put("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
					r.Get("/sessions", s.handleListUserSessions)
					r.Delete("/sessions", s.handleRevokeUserSessions)
				})
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.With(s.requireAdmin).Put("/", s.handleUpdateDevice)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteDevice)

					// Ownership stream
					r.Route("/owner-transactions", func(r chi.Router) {
						r.Get("/", s.handleListOwnerTransactions)
						r.Post("/", s.handleAppendOwnerTransaction)
						r.Get("/latest", s.handleLatestOwner)
						r.With(s.requireAdmin).Put("/{seq}", s.handleUpdateOwnerTransaction)
						r.With(s.requireAdmin).Delete("/{seq}", s.handleDeleteOwnerTransaction)
					})

					// Location stream
					r.Route("/location-transactions", func(r chi.Router) {
						r.Get("/", s.handleListLocationTransactions)
						r.Post("/", s.handleAppendLocationTransaction)
						r.Get("/latest", s.handleLatestLocation)
						r.With(s.requireAdmin).Put("/{seq}", s.handleUpdateLocationTransaction)
						r.With(s.requireAdmin).Delete("/{seq}", s.handleDeleteLocationTransaction)
					})

					// Purchasing record (one per device)
					r.Route("/purchasing-information", func(r chi.Router) {
						r.Get("/", s.handleGetPurchasing)
						r.Post("/", s.handleCreatePurchasing)
						r.Put("/", s.handleUpdatePurchasing)
					})
				})
			})

			// Bulk data and admin surface
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/export", s.handleExport)
				r.Post("/import", s.handleImport)
				r.Delete("/purge", s.handlePurge)
				r.Get("/audit", s.handleListAuditLogs)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
