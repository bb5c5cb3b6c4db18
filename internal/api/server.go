package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/mariasu11/grepstream/internal/config"
)

// Server represents the grepstream API server
type Server struct {
	host       string
	port       int
	timeout    time.Duration
	router     *chi.Mux
	logger     hclog.Logger
	handlers   *Handlers
	httpServer *http.Server
}

// NewServer creates a new API server over the filter sets held by store
func NewServer(cfg config.APIConfig, store *config.Store, logger hclog.Logger, opts ...HandlerOption) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	r := chi.NewRouter()

	// Create the server
	server := &Server{
		host:     cfg.Host,
		port:     cfg.Port,
		timeout:  cfg.Timeout,
		router:   r,
		logger:   logger.Named("api"),
		handlers: NewHandlers(store, cfg.MaxBodySize, logger, opts...),
	}

	// Set up middleware
	server.setupMiddleware()

	// Set up routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.timeout > 0 {
		s.router.Use(middleware.Timeout(s.timeout))
	}

	// Custom middleware
	s.router.Use(TraceMiddleware)
	s.router.Use(MetricsMiddleware)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	SetupRoutes(s.router, s.handlers)
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("Starting grepstream API server", "address", addr)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("Shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
