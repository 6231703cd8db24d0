package mockapi

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBearerTokenFromHeader(t *testing.T) {
	a := NewAuthService("secret", time.Hour)

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "bearer", value: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lower case scheme", value: "bearer abc", want: "abc"},
		{name: "surrounding spaces", value: "  Bearer   abc  ", want: "abc"},
		{name: "missing", value: "", wantErr: true},
		{name: "no scheme", value: "abc", wantErr: true},
		{name: "basic auth", value: "Basic dXNlcjpwYXNz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Authorization", tt.value)
			}
			got, err := a.BearerTokenFromHeader(h)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BearerTokenFromHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateAccessToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAuthService("secret", time.Hour)
	a.now = func() time.Time { return now }

	token, err := a.GenerateAccessToken(7)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := a.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != "7" || claims.ID == "" || claims.Issuer != tokenIssuer {
		t.Errorf("unexpected claims %+v", claims)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService("other-secret", time.Hour)
		other.now = a.now
		if _, err := other.ValidateAccessToken(token); err == nil {
			t.Error("expected signature check to fail")
		}
	})

	t.Run("expired", func(t *testing.T) {
		later := NewAuthService("secret", time.Hour)
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		if _, err := later.ValidateAccessToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		a.Revoke(claims)
		if _, err := a.ValidateAccessToken(token); !errors.Is(err, errTokenRevoked) {
			t.Errorf("expected errTokenRevoked, got %v", err)
		}
	})
}

func TestPasswordHash(t *testing.T) {
	a := NewAuthService("secret", time.Hour)

	hash, err := a.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.CheckPasswordHash(hash, "pw"); err != nil {
		t.Errorf("expected password to match: %v", err)
	}
	if err := a.CheckPasswordHash(hash, "other"); err == nil {
		t.Error("expected mismatch for a different password")
	}
}

func TestCanonicalUsername(t *testing.T) {
	r := NewRepository()

	// "é" precomposed and as e + combining acute accent
	if _, err := r.Create(" Jos\u00e9 ", "Jose", "hash"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("Jose\u0301", "Jose", "hash"); !errors.Is(err, ErrUsernameNotUnique) {
		t.Errorf("expected decomposed username to clash, got %v", err)
	}
	if _, err := r.GetByUsername("Jose\u0301"); err != nil {
		t.Errorf("expected lookup by canonical name to succeed: %v", err)
	}
}
