package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/logger"
	"github.com/information-sharing-networks/userportal/internal/middleware"
	"github.com/information-sharing-networks/userportal/internal/session"
)

type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	api       *apiclient.Client
	store     session.Store
	sessions  *session.Manager
	templates *templates
}

// NewServer creates the portal ui.
// store holds the sessions of every browser; each browser gets its own key prefix (see BrowserSession).
func NewServer(cfg *config.Config, api *apiclient.Client, store session.Store, logger *slog.Logger) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		api:       api,
		store:     store,
		sessions:  session.NewManager(api, store, logger),
		templates: tmpl,
	}

	s.setupMiddleware()
	s.registerRoutes()
	return s, nil
}

// Handler returns the router, used by tests to serve the ui with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger, "ui"))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
	s.router.Use(middleware.SecurityHeaders(s.config.AppEnv))
}

func (s *Server) registerRoutes() {
	h := &HandlerService{
		api:       s.api,
		templates: s.templates,
	}

	loginLimit := middleware.RateLimit(s.config.LoginRateLimitRPS, s.config.LoginRateLimitBurst, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too many attempts, please wait a moment and try again.", http.StatusTooManyRequests)
	})

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS()))))

	s.router.Group(func(r chi.Router) {
		r.Use(s.BrowserSession)

		// public routes
		r.Get("/", h.HandleHome)
		r.Get("/login", h.HandleLogin)
		r.Get("/register", h.HandleRegister)
		r.With(loginLimit).Post("/login", h.HandleLoginPost)
		r.With(loginLimit).Post("/register", h.HandleRegisterPost)

		// protected routes
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/users", h.HandleUsers)
			r.Get("/users/{id}", h.HandleUser)
			r.Post("/users/{id}", h.HandleUserUpdate)
			r.Post("/logout", h.HandleLogout)
		})
	})
}

// Start serves the ui until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("UI server listening",
			slog.String("address", addr),
			slog.String("api_url", s.api.BaseURL()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down UI server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
			return err
		}
	}

	return nil
}
