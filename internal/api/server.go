package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fswalther/inventory-core/internal/audit"
	"github.com/fswalther/inventory-core/internal/auth"
	"github.com/fswalther/inventory-core/internal/backup"
	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/infrastructure/config"
	"github.com/fswalther/inventory-core/internal/infrastructure/logging"
	"github.com/fswalther/inventory-core/internal/ledger"
	"github.com/fswalther/inventory-core/internal/purchase"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Security     config.SecurityConfig
	Logger       *logging.Logger
	Registry     *device.Registry
	Ledger       ledger.Repository
	PurchaseRepo purchase.Repository
	UserRepo     auth.UserRepository
	TokenRepo    auth.TokenRepository
	AuditRepo    audit.Repository
	Backup       *backup.Service
	Version      string
}

// Server is the HTTP API server for the inventory service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	registry     *device.Registry
	ledger       ledger.Repository
	purchaseRepo purchase.Repository
	userRepo     auth.UserRepository
	tokenRepo    auth.TokenRepository
	auditRepo    audit.Repository
	backup       *backup.Service
	version      string

	server   *http.Server
	hub      *Hub
	recorder *audit.Recorder
	tickets  *ticketStore
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("transaction ledger is required")
	}
	if deps.UserRepo == nil || deps.TokenRepo == nil {
		return nil, fmt.Errorf("user and token repositories are required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		registry:     deps.Registry,
		ledger:       deps.Ledger,
		purchaseRepo: deps.PurchaseRepo,
		userRepo:     deps.UserRepo,
		tokenRepo:    deps.TokenRepo,
		auditRepo:    deps.AuditRepo,
		backup:       deps.Backup,
		version:      deps.Version,
		tickets:      newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, the audit recorder, and the ticket
// cleanup loop, then launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if s.auditRepo != nil {
		s.recorder = audit.NewRecorder(s.auditRepo, s.logger.Logger)
	}

	go s.cleanTicketsLoop(srvCtx)

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
// It waits up to 10 seconds for in-flight requests to complete, flushes
// the audit recorder, then forcefully closes remaining connections.
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
	err := s.server.Shutdown(ctx)

	if s.recorder != nil {
		s.recorder.Close()
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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

// auditLog records a mutating operation to the audit trail (best-effort,
// asynchronous).
func (s *Server) auditLog(action, entityType, entityID, userID string, details map[string]any) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(action, entityType, entityID, userID, details)
}
