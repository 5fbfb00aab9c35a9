// Package api exposes the knowledge base over a JSON HTTP API.
//
// Endpoints:
//
//	POST /api/v1/search     query the knowledge base
//	POST /api/v1/sync       rebuild the vector store from disk
//	GET  /api/v1/documents  list loaded corpus documents
//	GET  /health            liveness probe
//	GET  /ready             readiness probe (database ping)
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/kbase/internal/config"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style header dribbling.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 60 * time.Second
	IdleTimeout  = 120 * time.Second

	defaultMaxSearchQueryBytes = 64 * 1024
)

// ServerConfig contains the collaborators and tuning for the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Retriever Searcher
	Syncer    Syncer
	Loader    DocumentLister
	Pinger    Pinger // optional, nil makes /ready always 503
	Config    *config.Config
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
	addr    string
	logger  *slog.Logger
}

// NewServer creates a server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Syncer == nil {
		return nil, errors.New("syncer is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("document loader is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxQueryBytes := int64(cfg.Config.MaxSearchQueryBytes)
	if maxQueryBytes <= 0 {
		maxQueryBytes = defaultMaxSearchQueryBytes
	}

	search := &searchHandler{retriever: cfg.Retriever, maxBytes: maxQueryBytes, logger: logger}
	sync := &syncHandler{syncer: cfg.Syncer, logger: logger}
	docs := &documentsHandler{loader: cfg.Loader, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", search.search)
	mux.HandleFunc("POST /api/v1/sync", sync.sync)
	mux.HandleFunc("GET /api/v1/documents", docs.list)

	limitPerSecond := cfg.Config.RateLimitPerSecond
	if limitPerSecond <= 0 {
		limitPerSecond = 1.0
	}
	burst := cfg.Config.RateLimitBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(limitPerSecond, burst)

	requestTimeout := cfg.Config.RequestTimeout()
	if requestTimeout <= 0 {
		requestTimeout = 20 * time.Second
	}

	// Middleware order: recovery outermost, then logging, rate limit,
	// per-request deadline.
	apiHandler := chain(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		rateLimitMiddleware(rl, cfg.Config.TrustProxy, logger),
		timeoutMiddleware(requestTimeout),
	)

	// Health probes bypass the middleware stack so orchestrator checks
	// are never rate limited.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pinger, logger))
	topMux.Handle("/api/", apiHandler)

	return &Server{
		handler: topMux,
		addr:    cfg.Config.ServeAddr,
		logger:  logger,
	}, nil
}

// Handler returns the server as an http.Handler for tests and mounting.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
