package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/logger"
)

// recordingBackend serves the auth endpoints and records the order of calls
type recordingBackend struct {
	mu          sync.Mutex
	calls       []string
	logoutCode  int
	loginStatus int
}

func (b *recordingBackend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.mu.Unlock()

	switch r.URL.Path {
	case "/register":
		// slow response: login must still wait for it
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42,"username":"u"}`))
	case "/login":
		if b.loginStatus != 0 {
			w.WriteHeader(b.loginStatus)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"t1","id":42}`))
	case "/users/42/logout":
		if r.Header.Get("Authorization") != "Bearer t1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		code := b.logoutCode
		if code == 0 {
			code = http.StatusNoContent
		}
		w.WriteHeader(code)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *recordingBackend) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func newTestManager(t *testing.T, backend *recordingBackend) (*Manager, *MemoryStore) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(server.Close)

	store := NewMemoryStore()
	client := apiclient.New(server.URL)
	return NewManager(client, store, logger.Discard()), store
}

func assertStored(t *testing.T, store Store, key, want string) {
	t.Helper()
	got, found, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	if want == "" {
		if found {
			t.Errorf("expected %s to be absent, got %q", key, got)
		}
		return
	}
	if !found || got != want {
		t.Errorf("expected %s=%q, got %q (found=%v)", key, want, got, found)
	}
}

func TestLoginStoresSession(t *testing.T) {
	m, store := newTestManager(t, &recordingBackend{})

	s, err := m.Login(context.Background(), apiclient.Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.Token != "t1" || s.UserID != "42" {
		t.Errorf("unexpected session %+v", s)
	}

	assertStored(t, store, TokenKey, "t1")
	assertStored(t, store, UserIDKey, "42")
}

func TestLoginFailureLeavesStoreEmpty(t *testing.T) {
	m, store := newTestManager(t, &recordingBackend{loginStatus: http.StatusUnauthorized})

	_, err := m.Login(context.Background(), apiclient.Credentials{Username: "u", Password: "bad"})
	if !apiclient.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	assertStored(t, store, TokenKey, "")
	assertStored(t, store, UserIDKey, "")
}

func TestRegisterThenLogin(t *testing.T) {
	backend := &recordingBackend{}
	m, store := newTestManager(t, backend)

	s, err := m.Register(context.Background(), apiclient.Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.Token != "t1" {
		t.Errorf("unexpected session %+v", s)
	}

	calls := backend.recorded()
	want := []string{"POST /register", "POST /login"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected calls %v, got %v", want, calls)
	}
	assertStored(t, store, TokenKey, "t1")
	assertStored(t, store, UserIDKey, "42")
}

func TestRegisterFailureSkipsLogin(t *testing.T) {
	backend := &recordingBackend{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.mu.Lock()
		backend.calls = append(backend.calls, r.Method+" "+r.URL.Path)
		backend.mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"username already taken"}`))
	}))
	t.Cleanup(server.Close)

	m := NewManager(apiclient.New(server.URL), NewMemoryStore(), logger.Discard())
	_, err := m.Register(context.Background(), apiclient.Credentials{Username: "u", Password: "p"})
	if apiclient.StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409 error, got %v", err)
	}
	if calls := backend.recorded(); len(calls) != 1 {
		t.Errorf("expected only the register call, got %v", calls)
	}
}

func TestCurrent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		values map[string]string
		want   *Session
	}{
		{name: "empty store"},
		{name: "token only", values: map[string]string{TokenKey: "t1"}},
		{name: "user id only", values: map[string]string{UserIDKey: "42"}},
		{name: "empty token", values: map[string]string{TokenKey: "", UserIDKey: "42"}},
		{
			name:   "both present",
			values: map[string]string{TokenKey: "t1", UserIDKey: "42"},
			want:   &Session{Token: "t1", UserID: "42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			for k, v := range tt.values {
				_ = store.Set(ctx, k, v)
			}
			m := NewManager(nil, store, logger.Discard())

			got, err := m.Current(ctx)
			if err != nil {
				t.Fatalf("Current() error = %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected no session, got %+v", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name       string
		logoutCode int
		wantStatus int
	}{
		{name: "server accepts", logoutCode: http.StatusNoContent},
		{name: "server fails", logoutCode: http.StatusInternalServerError, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := &recordingBackend{logoutCode: tt.logoutCode}
			m, store := newTestManager(t, backend)

			if _, err := m.Login(ctx, apiclient.Credentials{Username: "u", Password: "p"}); err != nil {
				t.Fatal(err)
			}

			err := m.Logout(ctx)
			if tt.wantStatus == 0 && err != nil {
				t.Fatalf("Logout() error = %v", err)
			}
			if tt.wantStatus != 0 && apiclient.StatusOf(err) != tt.wantStatus {
				t.Fatalf("expected server error %d, got %v", tt.wantStatus, err)
			}

			// cleared either way
			assertStored(t, store, TokenKey, "")
			assertStored(t, store, UserIDKey, "")
		})
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	backend := &recordingBackend{}
	m, _ := newTestManager(t, backend)

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if calls := backend.recorded(); len(calls) != 0 {
		t.Errorf("expected no backend calls, got %v", calls)
	}
}

// failingStore fails every write
type failingStore struct{ *MemoryStore }

func (f *failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }
func (f *failingStore) Delete(context.Context, string) error      { return errors.New("disk full") }

func TestStoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc((&recordingBackend{}).handler))
	t.Cleanup(server.Close)

	m := NewManager(apiclient.New(server.URL), &failingStore{NewMemoryStore()}, logger.Discard())

	_, err := m.Login(ctx, apiclient.Credentials{Username: "u", Password: "p"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected wrapped store error, got %v", err)
	}

	if err := m.Clear(ctx); err == nil {
		t.Fatalf("expected Clear() to report the store error")
	}
}

func TestTokenStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	sign := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{Subject: "42", ExpiresAt: jwt.NewNumericDate(exp)}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatal(err)
		}
		return token
	}

	tests := []struct {
		name    string
		session *Session
		want    TokenStatus
	}{
		{name: "no session", session: nil, want: TokenExpired},
		{name: "opaque token", session: &Session{Token: "8f14e45f-ceea", UserID: "1"}, want: TokenOpaque},
		{name: "unexpired jwt", session: &Session{Token: sign(now.Add(time.Hour)), UserID: "1"}, want: TokenValid},
		{name: "expired jwt", session: &Session{Token: sign(now.Add(-time.Minute)), UserID: "1"}, want: TokenExpired},
	}

	m := NewManager(nil, NewMemoryStore(), logger.Discard())
	m.now = func() time.Time { return now }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.TokenStatus(tt.session); got != tt.want {
				t.Errorf("TokenStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
