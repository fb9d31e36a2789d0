package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/identity"
	"github.com/bankverify/bankverify/internal/logging"
)

func newTestService(t *testing.T) (*Service, identity.User) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, logging.Discard())
	user, err := ids.Register(context.Background(), identity.RegisterInput{Email: "agent@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cfg := config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		JWTIssuer:       "bankverify-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	return NewService(cfg, repo), user
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("issuer", "secret")
	token, exp, err := m.Mint("u-1", "admin", 3, TokenAccess, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %s", exp)
	}
	claims, err := m.Parse(token, TokenAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "admin" || claims.Version != 3 || claims.Subject != "u-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := m.Parse(token, TokenRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected type mismatch to fail, got %v", err)
	}
	if _, err := NewTokenManager("issuer", "other").Parse(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected bad signature to fail, got %v", err)
	}
	if _, err := NewTokenManager("someone-else", "secret").Parse(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	m := NewTokenManager("issuer", "secret")
	token, _, err := m.Mint("u-1", "agent", 0, TokenAccess, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	m.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, err := m.Parse(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got, err := svc.Authenticate(ctx, pair.AccessToken); err != nil || got.ID != user.ID {
		t.Fatalf("authenticate: %v %+v", err, got)
	}
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked access token, got %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
}

func TestRefreshIssuesUsablePair(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, _ := svc.Issue(user)
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to be rejected for refresh, got %v", err)
	}
	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in %d", next.ExpiresIn)
	}
	if _, err := svc.Authenticate(ctx, next.AccessToken); err != nil {
		t.Fatalf("authenticate refreshed token: %v", err)
	}
}
