package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/auth"
	"github.com/nerrad567/gray-logic-audio/internal/device"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-audio/internal/monitor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceMonitor is the monitor as seen by the API.
// It is satisfied by *monitor.Monitor.
type DeviceMonitor interface {
	Status(id string) (device.Status, bool)
	Statuses() []device.Status
	ProbeDevice(ctx context.Context, id, source string) (device.Status, error)
	Health() monitor.HealthMessage
}

// TokenIssuer issues and validates API access tokens.
// It is satisfied by *auth.Issuer.
type TokenIssuer interface {
	Issue(ctx context.Context, clientID, secret string) (string, *auth.IssuedToken, error)
	Validate(ctx context.Context, token string) (*auth.CustomClaims, error)
	Revoke(ctx context.Context, id string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry

	// Monitor answers status and live probe requests. Optional: without it
	// device endpoints probe the bridge directly.
	Monitor DeviceMonitor

	// History serves /devices/{id}/history. Optional.
	History device.SnapshotRepository

	// Issuer enables bearer-token auth. When nil, protected routes are open
	// and the token endpoints are not mounted.
	Issuer TokenIssuer

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Gray Logic Audio.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	registry    *device.Registry
	monitor     DeviceMonitor
	history     device.SnapshotRepository
	issuer      TokenIssuer
	version     string
	startTime   time.Time
	server      *http.Server
	listener    net.Listener
	hub         *Hub
	tickets     *ticketStore
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Registry are required; everything else is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		monitor:   deps.Monitor,
		history:   deps.History,
		issuer:    deps.Issuer,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}

	// Use externally-provided hub if available (the monitor broadcasts
	// through it and is created first).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port-in-use error is
// reported here rather than logged from the background goroutine.
//
// Parameters:
//   - ctx: Parent context for the hub and ticket cleanup goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)

	if s.issuer == nil {
		s.logger.Warn("API authentication disabled: no JWT clients configured")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	addr := s.server.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		s.server = nil
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the WebSocket hub. It is nil before Start unless injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
