package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/information-sharing-networks/userportal/internal/apperrors"
	"github.com/information-sharing-networks/userportal/internal/logger"
)

type UserHandler struct {
	repo        *Repository
	authService *AuthService
	validate    *validator.Validate
}

func NewUserHandler(repo *Repository, authService *AuthService) *UserHandler {
	return &UserHandler{
		repo:        repo,
		authService: authService,
		validate:    validator.New(),
	}
}

type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

type LoginResponse struct {
	Token string `json:"token"`
	ID    int64  `json:"id"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitnil,min=1"`
	BirthDate *string `json:"birthDate" validate:"omitnil,datetime=2006-01-02"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterHandler creates a user account.
// The password is stored as a bcrypt hash; the name defaults to the username.
//
// Responses: 201 user, 400 invalid request, 409 username already taken
func (u *UserHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, fmt.Sprintf("could not decode request body: %v", err))
		return
	}

	if err := u.validate.Struct(req); err != nil || CanonicalUsername(req.Username) == "" {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest, "you must supply a username and password")
		return
	}

	hash, err := u.authService.HashPassword(req.Password)
	if err != nil {
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, fmt.Sprintf("could not hash password: %v", err))
		return
	}

	name := req.Name
	if name == "" {
		name = req.Username
	}

	created, err := u.repo.Create(req.Username, name, hash)
	if errors.Is(err, ErrUsernameNotUnique) {
		RespondWithError(w, r, http.StatusConflict, apperrors.ErrCodeUserAlreadyExists, "a user with this username already exists")
		return
	}
	if err != nil {
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, fmt.Sprintf("could not create user: %v", err))
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.Int64("user_id", created.ID))

	RespondWithJSON(w, http.StatusCreated, created.response())
}

// LoginHandler checks the credentials, marks the user ONLINE and returns an access token.
//
// Responses: 200 {token, id}, 400 invalid request, 401 bad credentials
func (u *UserHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, fmt.Sprintf("could not decode request body: %v", err))
		return
	}

	if err := u.validate.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest, "you must supply a username and password")
		return
	}

	account, err := u.repo.GetByUsername(req.Username)
	if err != nil {
		RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAuthenticationFailure, "invalid username or password")
		return
	}

	if err := u.authService.CheckPasswordHash(account.PasswordHash, req.Password); err != nil {
		RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAuthenticationFailure, "invalid username or password")
		return
	}

	token, err := u.authService.GenerateAccessToken(account.ID)
	if err != nil {
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, fmt.Sprintf("could not create access token: %v", err))
		return
	}

	if err := u.repo.SetStatus(account.ID, StatusOnline); err != nil {
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, fmt.Sprintf("could not update user status: %v", err))
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.Int64("user_id", account.ID))

	RespondWithJSON(w, http.StatusOK, LoginResponse{Token: token, ID: account.ID})
}

// ListUsersHandler returns every user ordered by id
func (u *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users := u.repo.List()

	res := make([]userResponse, 0, len(users))
	for _, usr := range users {
		res = append(res, usr.response())
	}
	RespondWithJSON(w, http.StatusOK, res)
}

// GetUserHandler returns a single user
//
// Responses: 200 user, 404 not found
func (u *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	usr, err := u.repo.GetByID(id)
	if err != nil {
		RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeUserNotFound, fmt.Sprintf("user with id %d was not found", id))
		return
	}
	RespondWithJSON(w, http.StatusOK, usr.response())
}

// UpdateUserHandler applies a partial update. Users can only update their own profile.
//
// Responses: 204, 400 invalid request, 403 not own profile, 404 not found, 409 username taken
func (u *UserHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	callerID, _, _ := ContextAuth(r.Context())
	if callerID != id {
		RespondWithError(w, r, http.StatusForbidden, apperrors.ErrCodeForbidden, "you can only update your own profile")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, fmt.Sprintf("could not decode request body: %v", err))
		return
	}

	if err := u.validate.Struct(req); err != nil || (req.Username != nil && CanonicalUsername(*req.Username) == "") {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest, "username cannot be empty and birthDate must use the format YYYY-MM-DD")
		return
	}

	err := u.repo.Update(id, req.Username, req.BirthDate)
	switch {
	case errors.Is(err, ErrUserNotFound):
		RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeUserNotFound, fmt.Sprintf("user with id %d was not found", id))
		return
	case errors.Is(err, ErrUsernameNotUnique):
		RespondWithError(w, r, http.StatusConflict, apperrors.ErrCodeUserAlreadyExists, "a user with this username already exists")
		return
	case err != nil:
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, fmt.Sprintf("could not update user: %v", err))
		return
	}

	RespondWithJSON(w, http.StatusNoContent, nil)
}

// LogoutHandler revokes the caller's token and marks the user OFFLINE.
//
// Responses: 200 message, 403 not own account
func (u *UserHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	callerID, claims, _ := ContextAuth(r.Context())
	if callerID != id {
		RespondWithError(w, r, http.StatusForbidden, apperrors.ErrCodeForbidden, "you can only log out your own account")
		return
	}

	if err := u.repo.SetStatus(id, StatusOffline); err != nil {
		RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeUserNotFound, fmt.Sprintf("user with id %d was not found", id))
		return
	}
	u.authService.Revoke(claims)

	RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "User successfully logged out."})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest, fmt.Sprintf("invalid user id: %s", raw))
		return 0, false
	}
	return id, true
}
