package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/dsvault/internal/logging"
)

// ServerConfig holds configuration for the metrics HTTP server.
type ServerConfig struct {
	// Enabled indicates whether the metrics server should run.
	Enabled bool

	// Port is the port to listen on. Zero picks a free port.
	Port int

	// Path is the path to serve metrics on.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:      false,
		Port:         9090,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves Prometheus metrics over HTTP.
type Server struct {
	config ServerConfig
	logger *logging.Logger
	server *http.Server
	addr   string
}

// NewServer creates a new metrics server.
func NewServer(config ServerConfig, logger *logging.Logger) *Server {
	return &Server{
		config: config,
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if !s.config.Enabled {
		return nil
	}

	InitMetrics()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	s.addr = ln.Addr().String()

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound listener address, or "" when not running.
func (s *Server) Addr() string {
	return s.addr
}
