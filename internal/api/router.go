package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-occupancy/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (token validated in handler; browsers cannot set headers)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermOccupancyRead))

				r.Get("/locations", s.handleListLocations)
				r.Get("/locations/{id}", s.handleGetLocation)

				r.Get("/occupancy", s.handleListOccupancy)
				r.Get("/occupancy/{id}", s.handleGetOccupancy)
			})

			// Finer-grained checks depend on the command and happen in the handler.
			r.With(s.requirePermission(auth.PermOccupancyCommand)).
				Post("/occupancy/{id}/commands", s.handleOccupancyCommand)

			if s.audit != nil {
				r.With(s.requirePermission(auth.PermAuditRead)).
					Get("/audit", s.handleListAudit)
			}
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
