package api

import (
	"net/http"
	"time"

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

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		if s.issuer != nil {
			r.Post("/auth/token", s.handleIssueToken)
		}

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			if s.issuer != nil {
				r.Delete("/auth/token", s.handleRevokeToken)
			}
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/properties", s.handleGetDeviceProperties)
					r.Get("/history", s.handleGetDeviceHistory)
				})
			})
		})
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Devices       int    `json:"devices"`
	WSClients     int    `json:"ws_clients"`
	Monitor       any    `json:"monitor,omitempty"`
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.registry.Count(),
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}
	if s.monitor != nil {
		resp.Monitor = s.monitor.Health()
	}
	writeJSON(w, http.StatusOK, resp)
}
