package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/location"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/tracker"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Tracker is the subset of *tracker.Tracker the API needs.
type Tracker interface {
	State(id string) (occupancy.State, bool)
	States() map[string]occupancy.State
	EffectiveTimeout(id string) (time.Time, bool)
	ExecuteAs(ctx context.Context, locationID string, cmd tracker.Command, actor tracker.Actor) (occupancy.Result, error)
}

// AuditLog is the read side of audit.Repository.
type AuditLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Locations is the read side of location.Repository.
type Locations interface {
	Get(ctx context.Context, id string) (*location.Location, error)
	List(ctx context.Context) ([]location.Location, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Tracker     Tracker
	Locations   Locations
	Audit       AuditLog // optional; /audit is not served without it
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the occupancy service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	tracker     Tracker
	locations   Locations
	audit       AuditLog
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, tracker, locations)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("occupancy tracker is required")
	}
	if deps.Locations == nil {
		return nil, fmt.Errorf("location repository is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		tracker:   deps.Tracker,
		locations: deps.Locations,
		audit:     deps.Audit,
		version:   deps.Version,
	}

	// The tracker is built before the server and already holds the hub
	// as its live feed, so main injects it here.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
		s.hub.SetSnapshotSource(s.feedSnapshot)
	}

	return s, nil
}

// feedSnapshot greets live-feed subscribers with current state.
func (s *Server) feedSnapshot(locations []string) any {
	return map[string]any{"occupancy": s.occupancySnapshot(locations)}
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub if none was injected,
// and launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub's lifetime
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.hub.SetSnapshotSource(s.feedSnapshot)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// HealthCheck verifies the API server has been started.
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
