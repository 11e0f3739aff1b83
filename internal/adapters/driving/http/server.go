package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	shutdownTimeout time.Duration

	// Services
	authService       driving.AuthService
	userService       driving.UserService
	credentialService driving.CredentialService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	Version         string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	userService driving.UserService,
	credentialService driving.CredentialService,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	s := &Server{
		shutdownTimeout:   shutdownTimeout,
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		userService:       userService,
		credentialService: credentialService,
		db:                db,
		redisClient:       redisClient,
	}

	s.setupRoutes()

	// Outermost first: recover, log, then CORS
	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth), at the root for orchestrators and under
	// the API prefix where the api document lists them
	for _, prefix := range []string{"", "/api/v1"} {
		s.router.HandleFunc("GET "+prefix+"/health", s.handleHealth)
		s.router.HandleFunc("GET "+prefix+"/ready", s.handleReady)
		s.router.HandleFunc("GET "+prefix+"/version", s.handleVersion)
	}
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// Setup endpoint (public, one-time use)
	s.router.HandleFunc("POST /api/v1/setup", s.handleSetup)

	// Auth endpoints (authenticated)
	s.router.Handle("POST /api/v1/auth/logout",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogout)))
	s.router.Handle("POST /api/v1/auth/logout-all",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogoutAll)))

	// User endpoints
	s.router.Handle("GET /api/v1/me",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetMe)))

	// Password change resolves the session without rejecting, the
	// credential service reports unauthenticated callers itself
	s.router.Handle("POST /api/v1/me/password",
		authMiddleware.Resolve(http.HandlerFunc(s.handleChangePassword)))

	// Admin-only user management
	s.router.Handle("GET /api/v1/users",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleListUsers))))
	s.router.Handle("POST /api/v1/users",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleCreateUser))))
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
