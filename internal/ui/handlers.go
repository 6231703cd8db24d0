package ui

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/formatters"
	"github.com/information-sharing-networks/userportal/internal/logger"
	"github.com/information-sharing-networks/userportal/internal/session"
)

type HandlerService struct {
	api       *apiclient.Client
	templates *templates
}

type pageData struct {
	Title        string
	Error        string
	Notice       string
	Session      *session.Session
	Username     string // form value echoed back after a failed submit
	Users        []apiclient.User
	User         *apiclient.User
	IsOwnProfile bool
	Editing      bool
}

// notices shown after a redirect, keyed by the notice query parameter
var notices = map[string]string{
	"updated":   "Profile updated successfully!",
	"unchanged": "No changes detected.",
}

func (h *HandlerService) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if err := h.templates.render(w, status, name, data); err != nil {
		reqLogger := logger.ContextRequestLogger(r.Context())
		reqLogger.Error("Failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// userMessage returns the text shown to the user for an error from the api client
func userMessage(err error) string {
	if errors.Is(err, apiclient.ErrInvalidInput) {
		return strings.TrimPrefix(err.Error(), apiclient.ErrInvalidInput.Error()+": ")
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "An error occurred. Please try again."
}

// handleAPIError clears the session and redirects to login when the backend rejects the token,
// otherwise it returns false and the caller renders the error
func (h *HandlerService) handleAPIError(w http.ResponseWriter, r *http.Request, err error) bool {
	if !apiclient.IsUnauthorized(err) {
		return false
	}

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Info("Session rejected by the backend - redirecting to login")

	if err := contextManager(r.Context()).Clear(r.Context()); err != nil {
		reqLogger.Error("Could not clear session", slog.String("error", err.Error()))
	}
	redirectToLogin(w, r)
	return true
}

// HandleHome redirects to the user list if logged in, login if not
func (h *HandlerService) HandleHome(w http.ResponseWriter, r *http.Request) {
	sess, err := contextManager(r.Context()).Current(r.Context())
	if err != nil || sess == nil {
		redirectToLogin(w, r)
		return
	}
	redirect(w, r, "/users")
}

func (h *HandlerService) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "login", pageData{Title: "Login"})
}

// HandleLoginPost authenticates the user and stores the session
func (h *HandlerService) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	creds := apiclient.Credentials{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	sess, err := contextManager(r.Context()).Login(r.Context(), creds)
	if err != nil {
		reqLogger.Warn("Authentication failed", slog.String("error", err.Error()))
		h.renderPage(w, r, statusForError(err), "login", pageData{
			Title:    "Login",
			Error:    userMessage(err),
			Username: creds.Username,
		})
		return
	}

	// add the user to the final request log
	logger.ContextWithLogAttrs(r.Context(), slog.String("user_id", sess.UserID))

	redirect(w, r, "/users")
}

func (h *HandlerService) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

// HandleRegisterPost creates the account and logs the new user in
func (h *HandlerService) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	creds := apiclient.Credentials{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	if r.FormValue("confirm_password") != creds.Password {
		h.renderPage(w, r, http.StatusUnprocessableEntity, "register", pageData{
			Title:    "Register",
			Error:    "Passwords do not match.",
			Username: creds.Username,
		})
		return
	}

	sess, err := contextManager(r.Context()).Register(r.Context(), creds)
	if err != nil {
		reqLogger.Warn("Registration failed", slog.String("error", err.Error()))
		h.renderPage(w, r, statusForError(err), "register", pageData{
			Title:    "Register",
			Error:    userMessage(err),
			Username: creds.Username,
		})
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.String("user_id", sess.UserID))

	redirect(w, r, "/users")
}

// HandleUsers lists all users
func (h *HandlerService) HandleUsers(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	sess := contextSession(r.Context())

	users, err := h.api.ListUsers(r.Context(), sess.Token, sess.UserID)
	if err != nil {
		if h.handleAPIError(w, r, err) {
			return
		}
		reqLogger.Error("Failed to fetch users", slog.String("error", err.Error()))
		h.renderPage(w, r, http.StatusBadGateway, "users", pageData{
			Title:   "Users",
			Error:   "Failed to fetch users. Please try again.",
			Session: sess,
		})
		return
	}

	h.renderPage(w, r, http.StatusOK, "users", pageData{
		Title:   "Users",
		Session: sess,
		Users:   users,
	})
}

// HandleUser shows a user profile. The logged in user can edit their own profile (?edit=1).
func (h *HandlerService) HandleUser(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	sess := contextSession(r.Context())
	id := chi.URLParam(r, "id")

	user, err := h.api.GetUser(r.Context(), sess.Token, sess.UserID, id)
	if err != nil {
		if h.handleAPIError(w, r, err) {
			return
		}
		reqLogger.Error("Failed to fetch user", slog.String("id", id), slog.String("error", err.Error()))

		status := http.StatusBadGateway
		if apiclient.StatusOf(err) == http.StatusNotFound {
			status = http.StatusNotFound
		}
		h.renderPage(w, r, status, "user", pageData{
			Title:   "Profile",
			Error:   "Failed to fetch user data.",
			Session: sess,
		})
		return
	}

	isOwn := sess.UserID == id
	h.renderPage(w, r, http.StatusOK, "user", pageData{
		Title:        "Profile",
		Notice:       notices[r.URL.Query().Get("notice")],
		Session:      sess,
		User:         user,
		IsOwnProfile: isOwn,
		Editing:      isOwn && r.URL.Query().Get("edit") == "1",
	})
}

// HandleUserUpdate saves the changed fields of the logged in user's own profile
func (h *HandlerService) HandleUserUpdate(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	sess := contextSession(r.Context())
	id := chi.URLParam(r, "id")

	if id != sess.UserID {
		http.Error(w, "You can only edit your own profile.", http.StatusForbidden)
		return
	}

	current, err := h.api.GetUser(r.Context(), sess.Token, sess.UserID, id)
	if err != nil {
		if h.handleAPIError(w, r, err) {
			return
		}
		reqLogger.Error("Failed to fetch user", slog.String("id", id), slog.String("error", err.Error()))
		h.renderPage(w, r, http.StatusBadGateway, "user", pageData{
			Title:   "Profile",
			Error:   "Failed to fetch user data.",
			Session: sess,
		})
		return
	}

	update := changedFields(current, r.FormValue("username"), r.FormValue("birthDate"))
	if update.IsEmpty() {
		redirect(w, r, "/users/"+id+"?notice=unchanged")
		return
	}

	if err := h.api.UpdateUser(r.Context(), sess.Token, id, update); err != nil {
		if h.handleAPIError(w, r, err) {
			return
		}
		reqLogger.Warn("Failed to update user", slog.String("id", id), slog.String("error", err.Error()))
		h.renderPage(w, r, statusForError(err), "user", pageData{
			Title:        "Profile",
			Error:        "Failed to update profile: " + userMessage(err),
			Session:      sess,
			User:         current,
			IsOwnProfile: true,
			Editing:      true,
		})
		return
	}

	redirect(w, r, "/users/"+id+"?notice=updated")
}

// changedFields builds an update containing only the values that differ from the stored profile
func changedFields(current *apiclient.User, username, birthDate string) apiclient.UserUpdate {
	var update apiclient.UserUpdate
	if username != current.Username {
		update.Username = &username
	}
	// the date input cannot clear a birth date, an empty value means unchanged
	if birthDate != "" && birthDate != formatters.NormalizeDate(current.BirthDate) {
		update.BirthDate = &birthDate
	}
	return update
}

// HandleLogout ends the session. The local session is cleared even when the backend call fails.
func (h *HandlerService) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := contextManager(r.Context()).Logout(r.Context()); err != nil {
		reqLogger := logger.ContextRequestLogger(r.Context())
		reqLogger.Warn("Logout failed on the backend", slog.String("error", err.Error()))
	}
	redirectToLogin(w, r)
}

// statusForError chooses the status of a page re-rendered after a failed form submit
func statusForError(err error) int {
	if errors.Is(err, apiclient.ErrInvalidInput) {
		return http.StatusUnprocessableEntity
	}
	if status := apiclient.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
