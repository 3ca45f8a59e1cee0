package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/dlbridge/internal/config"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/mw"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/routes"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

// quietPaths are polled constantly by page integrations and logged at debug.
var quietPaths = []string{"/healthz", "/readyz", "/api/service", "/api/downloads"}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	logger  logger.Logger
	started time.Time
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	r := chi.NewRouter()

	// --- Global middlewares (safe defaults)
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)                // X-Request-ID on each request
	r.Use(middleware.Recoverer)                // never crash the process on panic
	r.Use(mw.Log(loggerClient, quietPaths...)) // structured access logs
	r.Use(mw.CORS(cfg.AllowedOrigins))         // page integrations call from the music site origin
	r.Use(middleware.CleanPath)                // collapse double slashes before routing
	r.Use(middleware.StripSlashes)             // "/api/downloads/" == "/api/downloads"

	// Per-route timeouts are set in routes; the event stream must not have one.
	routes.RegisterAll(r, d)
	loggerClient.Debug("routes registered", logger.Strings("groups", routes.Groups()))

	// Request contexts end when shutdown starts so event streams let go.
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	s.RegisterOnShutdown(cancel)

	return &Server{
		http:    s,
		logger:  loggerClient,
		started: d.StartTime,
	}
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.http.Shutdown(ctx)
}
