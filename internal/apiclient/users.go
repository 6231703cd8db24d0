package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is wrapped by the validation errors returned before a request is sent
var ErrInvalidInput = errors.New("invalid input")

// validate is a package-level singleton, creating a validator per call is expensive
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names so messages match the form fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ID is a backend identifier. The backend sends ids as JSON numbers, the portal treats them as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// User is the backend representation of a user account
type User struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Token     string `json:"token,omitempty"`
}

// Credentials are sent to /login and /register
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the required fields before anything is sent to the backend
func (c Credentials) Validate() error {
	return validateStruct(c)
}

// AuthResponse is returned by /login
type AuthResponse struct {
	Token string `json:"token"`
	ID    ID     `json:"id"`
}

// UserUpdate is a partial profile update - nil fields are left unchanged by the backend.
type UserUpdate struct {
	Username  *string `json:"username,omitempty" validate:"omitnil,min=1"`
	BirthDate *string `json:"birthDate,omitempty" validate:"omitnil,datetime=2006-01-02"`
}

// IsEmpty reports whether the update would change nothing
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.BirthDate == nil
}

func (u UserUpdate) Validate() error {
	return validateStruct(u)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: please input your %s", ErrInvalidInput, fe.Field())
	case "min":
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, fe.Field())
	case "datetime":
		return fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", ErrInvalidInput, fe.Field())
	default:
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, fe.Field())
	}
}

// BearerHeader returns the Authorization header used for authenticated calls
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// Login exchanges credentials for a token and user id
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var res AuthResponse
	if err := c.Post(ctx, "/login", creds, nil, &res); err != nil {
		return nil, err
	}

	if res.Token == "" {
		return nil, errors.New("token not found in login response")
	}
	return &res, nil
}

// Register creates a new account. The response is not relied on for a token - callers log in afterwards.
func (c *Client) Register(ctx context.Context, creds Credentials) (*User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var user User
	if err := c.Post(ctx, "/register", creds, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users visible to the logged in user
func (c *Client) ListUsers(ctx context.Context, token, userID string) ([]User, error) {
	var users []User
	if err := c.Get(ctx, "/users", NewQuery("userId", userID), BearerHeader(token), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a single user by id
func (c *Client) GetUser(ctx context.Context, token, userID, id string) (*User, error) {
	var user User
	endpoint := "/users/" + url.PathEscape(id)
	if err := c.Get(ctx, endpoint, NewQuery("userId", userID), BearerHeader(token), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update to the user's own profile. The backend answers 204 (or 200).
func (c *Client) UpdateUser(ctx context.Context, token, id string, update UserUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	return c.Put(ctx, "/users/"+url.PathEscape(id), update, BearerHeader(token), nil)
}

// Logout invalidates the session server side
func (c *Client) Logout(ctx context.Context, token, id string) error {
	return c.Put(ctx, "/users/"+url.PathEscape(id)+"/logout", struct{}{}, BearerHeader(token), nil)
}
