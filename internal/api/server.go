package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/auth"
	"github.com/nerrad567/miplug-bridge/internal/history"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// StateRecorder is the history capability used by the API.
// *history.Recorder satisfies it.
type StateRecorder interface {
	Observe(ctx context.Context, on bool, source string) bool
	Subscribe(l history.Listener)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Version  string
	Gatherer prometheus.Gatherer

	AccessoryID   string
	AccessoryType string
	Accessory     accessory.Accessory
	Recorder      StateRecorder
	Auth          *auth.Authenticator

	// Checks are reported by /api/v1/health, keyed by component name.
	Checks map[string]HealthCheck
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	version   string
	gatherer  prometheus.Gatherer
	id        string
	typeName  string
	accessory accessory.Accessory
	recorder  StateRecorder
	auth      *auth.Authenticator
	checks    map[string]HealthCheck
	startTime time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
}

// New validates deps and builds the server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accessory == nil {
		return nil, fmt.Errorf("accessory is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("state recorder is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		version:   deps.Version,
		gatherer:  gatherer,
		id:        deps.AccessoryID,
		typeName:  deps.AccessoryType,
		accessory: deps.Accessory,
		recorder:  deps.Recorder,
		auth:      deps.Auth,
		checks:    deps.Checks,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}

	s.recorder.Subscribe(func(e history.Entry) {
		s.hub.Broadcast(ChannelStateChanged, e)
	})

	return s, nil
}

// Start launches the WebSocket hub and the HTTP listener in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr)
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

// Close stops the hub and gracefully shuts the listener down.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
