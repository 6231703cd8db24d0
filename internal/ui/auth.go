package ui

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/userportal/internal/logger"
	"github.com/information-sharing-networks/userportal/internal/session"
)

type contextKey struct {
	name string
}

var (
	managerKey = contextKey{"session-manager"}
	sessionKey = contextKey{"session"}
)

// BrowserSession identifies the browser with a random id held in a cookie and adds a session manager
// bound to that browser's scope of the store to the request context.
func (s *Server) BrowserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		browserID := ""
		if c, err := r.Cookie(s.config.SessionCookieName); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				browserID = id.String()
			}
		}

		if browserID == "" {
			browserID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     s.config.SessionCookieName,
				Value:    browserID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.config.AppEnv == "production",
				SameSite: http.SameSiteLaxMode,
			})
		}

		manager := s.sessions.WithStore(session.Scoped(s.store, "session:"+browserID))
		ctx := context.WithValue(r.Context(), managerKey, manager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession redirects to the login page unless the browser has a session with a usable token.
// The session is added to the request context.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.ContextRequestLogger(r.Context())
		manager := contextManager(r.Context())

		sess, err := manager.Current(r.Context())
		if err != nil {
			reqLogger.Error("Could not read session",
				slog.String("component", "ui.RequireSession"),
				slog.String("error", err.Error()),
			)
			redirectToLogin(w, r)
			return
		}
		if sess == nil {
			reqLogger.Debug("No session - redirecting to login",
				slog.String("component", "ui.RequireSession"),
			)
			redirectToLogin(w, r)
			return
		}

		if status := manager.TokenStatus(sess); status == session.TokenExpired {
			reqLogger.Debug("Session token expired - redirecting to login",
				slog.String("component", "ui.RequireSession"),
			)
			if err := manager.Clear(r.Context()); err != nil {
				reqLogger.Error("Could not clear session", slog.String("error", err.Error()))
			}
			redirectToLogin(w, r)
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.String("user_id", sess.UserID))

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextManager(ctx context.Context) *session.Manager {
	m, ok := ctx.Value(managerKey).(*session.Manager)
	if !ok {
		// programming error - BrowserSession must wrap every route that uses sessions
		panic("session manager missing from request context")
	}
	return m
}

func contextSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// redirectToLogin redirects to the login page for both HTMX and direct requests
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, "/login")
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
