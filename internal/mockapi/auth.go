package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/information-sharing-networks/userportal/internal/apperrors"
	"github.com/information-sharing-networks/userportal/internal/logger"
)

const tokenIssuer = "userportal-mock-api"

var bearerTokenRegex = regexp.MustCompile(`^\s*(?i)\bbearer\b\s*([^\s]+)\s*$`)

type contextKey struct {
	name string
}

var userIDKey = contextKey{"user-id"}

// AuthService issues and checks the mock api access tokens.
// Tokens are HS256 JWTs; logging out revokes the token's jti until it would have expired anyway.
type AuthService struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func NewAuthService(secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

func (a *AuthService) HashPassword(password string) (string, error) {
	dat, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(dat), nil
}

func (a *AuthService) CheckPasswordHash(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateAccessToken creates a JWT for the user signed with HS256
func (a *AuthService) GenerateAccessToken(userID int64) (string, error) {
	issuedAt := a.now()

	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(a.tokenTTL)),
		Subject:   strconv.FormatInt(userID, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign JWT: %w", err)
	}
	return signed, nil
}

// BearerTokenFromHeader returns the token from "Authorization: Bearer {token}"
func (a *AuthService) BearerTokenFromHeader(headers http.Header) (string, error) {
	value := headers.Get("Authorization")
	if value == "" {
		return "", errors.New("authorization header is missing")
	}

	token := bearerTokenRegex.ReplaceAllString(value, "$1")
	if token == value {
		return "", errors.New("authorization header format must be Bearer {token}")
	}
	return token, nil
}

// ValidateAccessToken checks the signature, expiry and revocation status and returns the claims
func (a *AuthService) ValidateAccessToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	if a.isRevoked(claims.ID) {
		return nil, errTokenRevoked
	}
	return claims, nil
}

var errTokenRevoked = errors.New("token has been revoked")

// Revoke invalidates the token with the given claims
func (a *AuthService) Revoke(claims *jwt.RegisteredClaims) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for jti, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, jti)
		}
	}

	exp := now.Add(a.tokenTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	a.revoked[claims.ID] = exp
}

func (a *AuthService) isRevoked(jti string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[jti]
	return ok
}

// RequireValidAccessToken rejects requests without a usable bearer token.
// The user id and claims from the token are added to the request context.
func (a *AuthService) RequireValidAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearerToken, err := a.BearerTokenFromHeader(r.Header)
		if err != nil {
			RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAuthorizationFailure, fmt.Sprintf("unauthorized: %v", err))
			return
		}

		claims, err := a.ValidateAccessToken(bearerToken)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAccessTokenExpired, "access token expired, please log in again")
			return
		case errors.Is(err, errTokenRevoked):
			RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeTokenRevoked, "access token has been revoked, please log in again")
			return
		case err != nil:
			RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAuthorizationFailure, fmt.Sprintf("unauthorized: %v", err))
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			RespondWithError(w, r, http.StatusUnauthorized, apperrors.ErrCodeAuthorizationFailure, "unauthorized: could not parse user id in token")
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.Int64("user_id", userID))

		ctx := context.WithValue(r.Context(), userIDKey, authContext{userID: userID, claims: claims})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authContext struct {
	userID int64
	claims *jwt.RegisteredClaims
}

// ContextAuth returns the authenticated user id and token claims added by RequireValidAccessToken
func ContextAuth(ctx context.Context) (int64, *jwt.RegisteredClaims, bool) {
	ac, ok := ctx.Value(userIDKey).(authContext)
	if !ok {
		return 0, nil, false
	}
	return ac.userID, ac.claims, true
}
