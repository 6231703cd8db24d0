// Package mockapi is an in-memory implementation of the user backend.
//
// It serves the same endpoints as the real backend so the portal and cli can be run and tested
// without network access:
//
//	POST /register           create an account
//	POST /login              exchange credentials for a token
//	GET  /users              list users
//	GET  /users/{id}         get a user
//	PUT  /users/{id}         update your own profile (204)
//	PUT  /users/{id}/logout  revoke your token
//
// Errors use the {error_code, message} envelope.
package mockapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/userportal/internal/apperrors"
	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/logger"
	"github.com/information-sharing-networks/userportal/internal/middleware"
)

const (
	DefaultTokenTTL = 24 * time.Hour

	defaultRateLimitRPS   = 100
	defaultRateLimitBurst = 200
)

type Options struct {
	Host           string
	Port           int
	Secret         string
	TokenTTL       time.Duration
	RateLimitRPS   int32 // <= 0 disables rate limiting
	RateLimitBurst int32
}

// OptionsFromConfig returns the mock api settings from the shared configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Host:           cfg.Host,
		Port:           cfg.MockAPIPort,
		Secret:         cfg.MockAPISecret,
		TokenTTL:       DefaultTokenTTL,
		RateLimitRPS:   defaultRateLimitRPS,
		RateLimitBurst: defaultRateLimitBurst,
	}
}

type Server struct {
	router      *chi.Mux
	opts        Options
	logger      *slog.Logger
	repo        *Repository
	authService *AuthService
}

func NewServer(opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("a token signing secret is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}

	s := &Server{
		router:      chi.NewRouter(),
		opts:        opts,
		logger:      logger,
		repo:        NewRepository(),
		authService: NewAuthService(opts.Secret, opts.TokenTTL),
	}

	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the router, used by tests to serve the api with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() error {
	corsMiddleware, err := middleware.NewOpenCORS()
	if err != nil {
		return fmt.Errorf("failed to create CORS middleware: %w", err)
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(logger.RequestLogging(s.logger, "mock-api"))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(corsMiddleware))
	s.router.Use(middleware.RateLimit(s.opts.RateLimitRPS, s.opts.RateLimitBurst, func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded, "Rate limit exceeded")
	}))
	return nil
}

func (s *Server) registerRoutes() {
	users := NewUserHandler(s.repo, s.authService)

	s.router.Post("/register", users.RegisterHandler)
	s.router.Post("/login", users.LoginHandler)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authService.RequireValidAccessToken)

		r.Get("/users", users.ListUsersHandler)
		r.Get("/users/{id}", users.GetUserHandler)
		r.Put("/users/{id}", users.UpdateUserHandler)
		r.Put("/users/{id}/logout", users.LogoutHandler)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeInvalidRequest, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
}

// Start serves the api until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("mock api listening", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down mock api...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}
