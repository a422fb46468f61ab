package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host         string        // Host to bind to (default "localhost")
	Port         int           // Port to listen on (default 8081)
	ReadTimeout  time.Duration // Read timeout (default 30s)
	WriteTimeout time.Duration // Write timeout (default 0, event streams stay open)
	IdleTimeout  time.Duration // Idle timeout (default 60s)
	MaxWorkers   int           // Max concurrent policy queries (default 8)
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:        "localhost",
		Port:        8081,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		MaxWorkers:  DefaultMaxWorkers,
	}
}

// ConfigFromAddr returns the default config listening on a host:port
// address.
func ConfigFromAddr(addr string) (ServerConfig, error) {
	cfg := DefaultConfig()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return cfg, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return cfg, err
	}
	cfg.Host, cfg.Port = host, p
	return cfg, nil
}

// Server is the HTTP status server.
type Server struct {
	config   ServerConfig
	deps     Deps
	handlers *Handlers
	server   *http.Server
	pool     *WorkerPool
	version  string
	log      *zap.Logger
}

// NewServer creates a new API server.
func NewServer(deps Deps, config ServerConfig, version string) *Server {
	pool := NewWorkerPool(config.MaxWorkers)
	return &Server{
		config:   config,
		deps:     deps,
		handlers: NewHandlers(deps, version, pool),
		pool:     pool,
		version:  version,
		log:      logger.OrNop(deps.Logger),
	}
}

// Pool returns the worker pool for monitoring.
func (s *Server) Pool() *WorkerPool {
	return s.pool
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs all requests.
func loggingMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Routes returns the API handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handlers.Health)
	mux.HandleFunc("GET /api/status", s.handlers.Status)
	mux.HandleFunc("GET /api/events", s.handlers.Events)
	mux.HandleFunc("POST /api/choose", s.handlers.Choose)
	mux.HandleFunc("GET /api/games", s.handlers.Games)
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	return corsMiddleware(loggingMiddleware(s.log, mux))
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", zap.String("addr", addr), zap.String("version", s.version))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("status API stopped")
	return nil
}
