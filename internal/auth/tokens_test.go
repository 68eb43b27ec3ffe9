package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func newTestAuthenticator(t *testing.T, password string) *Authenticator {
	t.Helper()

	hash := ""
	if password != "" {
		var err error
		hash, err = HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
	}

	return NewAuthenticator(config.SecurityConfig{
		JWT:   config.JWTConfig{Secret: testSecret, AccessTokenTTL: 5},
		Admin: config.AdminConfig{Username: "admin", PasswordHash: hash},
	})
}

func TestAuthenticator_Login(t *testing.T) {
	a := newTestAuthenticator(t, "hunter22")

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "admin", "hunter22", nil},
		{"wrong password", "admin", "hunter23", ErrInvalidCredentials},
		{"wrong user", "root", "hunter22", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expires, err := a.Login(tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if token == "" {
				t.Error("Login() returned empty token")
			}
			if d := time.Until(expires); d <= 4*time.Minute || d > 5*time.Minute {
				t.Errorf("expiry in %v, want about 5m", d)
			}

			claims, err := a.ParseToken(token)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if claims.Subject != "admin" || claims.Issuer != issuer || claims.ID == "" {
				t.Errorf("claims = %+v", claims.RegisteredClaims)
			}
		})
	}
}

func TestAuthenticator_LoginNotConfigured(t *testing.T) {
	a := newTestAuthenticator(t, "")
	if _, _, err := a.Login("admin", "anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Login() error = %v, want ErrNotConfigured", err)
	}
}

func TestAuthenticator_ParseTokenRejects(t *testing.T) {
	a := newTestAuthenticator(t, "")

	valid, _, err := a.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	other := NewAuthenticator(config.SecurityConfig{JWT: config.JWTConfig{Secret: "another-secret-another-secret-xx"}})
	forged, _, err := other.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	expired := newTestAuthenticator(t, "")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := a.ParseToken(valid); err != nil {
		t.Fatalf("ParseToken(valid) error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", forged},
		{"expired", old},
		{"alg none", none},
		{"missing subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ParseToken(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestNewAuthenticator_DefaultTTL(t *testing.T) {
	a := NewAuthenticator(config.SecurityConfig{})
	if a.ttl != defaultTokenTTL {
		t.Errorf("ttl = %v, want %v", a.ttl, defaultTokenTTL)
	}
}
