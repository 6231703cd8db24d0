package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "string", input: `"42"`, want: "42"},
		{name: "number", input: `42`, want: "42"},
		{name: "large number", input: `9007199254740993`, want: "9007199254740993"},
		{name: "null", input: `null`, want: ""},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tt.input), &id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && id != tt.want {
				t.Errorf("got %q, want %q", id, tt.want)
			}
		})
	}
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{name: "valid", creds: Credentials{Username: "u", Password: "p"}},
		{name: "missing username", creds: Credentials{Password: "p"}, wantErr: "please input your username"},
		{name: "missing password", creds: Credentials{Username: "u"}, wantErr: "please input your password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUserUpdateValidate(t *testing.T) {
	empty := ""
	name := "new-name"
	goodDate := "1990-04-01"
	badDate := "01.04.1990"

	tests := []struct {
		name    string
		update  UserUpdate
		wantErr string
	}{
		{name: "nothing set", update: UserUpdate{}},
		{name: "username", update: UserUpdate{Username: &name}},
		{name: "birth date", update: UserUpdate{BirthDate: &goodDate}},
		{name: "empty username", update: UserUpdate{Username: &empty}, wantErr: "username cannot be empty"},
		{name: "bad date", update: UserUpdate{BirthDate: &badDate}, wantErr: "birthDate must be a date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "u" || creds.Password != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"t1","id":42}`))
	})

	res, err := c.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token != "t1" || res.ID != "42" {
		t.Errorf("unexpected response %+v", res)
	}

	_, err = c.Login(context.Background(), Credentials{Username: "u", Password: "wrong"})
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad credentials") {
		t.Errorf("expected server message in error, got %q", err.Error())
	}
}

func TestLoginRejectsMissingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42"}`))
	})

	if _, err := c.Login(context.Background(), Credentials{Username: "u", Password: "p"}); err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestLoginValidatesBeforeSending(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Login(context.Background(), Credentials{Username: "u"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Errorf("no request should be sent for invalid credentials")
	}
}

func TestAuthenticatedCalls(t *testing.T) {
	type captured struct {
		method, path, query, auth, body string
	}
	var got captured

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = captured{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), string(data)}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users":
			_, _ = w.Write([]byte(`[{"id":1,"username":"a","name":"A"},{"id":2,"username":"b","name":"B"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/users/2":
			_, _ = w.Write([]byte(`{"id":2,"username":"b","status":"ONLINE","birthDate":"1990-04-01"}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	users, err := c.ListUsers(ctx, "t1", "42")
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 || users[1].ID != "2" || users[1].Name != "B" {
		t.Errorf("unexpected users %+v", users)
	}
	if got.auth != "Bearer t1" || got.query != "userId=42" {
		t.Errorf("unexpected list request %+v", got)
	}

	user, err := c.GetUser(ctx, "t1", "42", "2")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Username != "b" || user.Status != "ONLINE" || user.BirthDate != "1990-04-01" {
		t.Errorf("unexpected user %+v", user)
	}

	name := "renamed"
	if err := c.UpdateUser(ctx, "t1", "42", UserUpdate{Username: &name}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if got.method != http.MethodPut || got.path != "/users/42" || got.body != `{"username":"renamed"}` {
		t.Errorf("unexpected update request %+v", got)
	}

	if err := c.Logout(ctx, "t1", "42"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if got.method != http.MethodPut || got.path != "/users/42/logout" || got.auth != "Bearer t1" {
		t.Errorf("unexpected logout request %+v", got)
	}
}
