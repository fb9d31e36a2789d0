// Package auth issues and verifies staff access and refresh tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/identity"
)

var (
	// ErrInvalidToken covers malformed, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked indicates the token predates the user's last logout.
	ErrTokenRevoked = errors.New("token version invalidated")
)

// Service issues token pairs and enforces token versions.
type Service struct {
	users      identity.Repository
	access     *TokenManager
	refresh    *TokenManager
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService builds the token service from configuration.
func NewService(cfg config.Config, users identity.Repository) *Service {
	return &Service{
		users:      users,
		access:     NewTokenManager(cfg.JWTIssuer, cfg.JWTSecret),
		refresh:    NewTokenManager(cfg.JWTIssuer, cfg.RefreshSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Issue mints an access and refresh token for user.
func (s *Service) Issue(user identity.User) (TokenPair, error) {
	access, _, err := s.access.Mint(user.ID, string(user.Role), user.TokenVersion, TokenAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.refresh.Mint(user.ID, string(user.Role), user.TokenVersion, TokenRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.accessTTL.Seconds())}, nil
}

// Refresh verifies the refresh token and rotates the pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.refresh.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.current(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(user)
}

// Authenticate verifies an access token and returns its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.User, error) {
	claims, err := s.access.Parse(accessToken, TokenAccess)
	if err != nil {
		return identity.User{}, err
	}
	return s.current(ctx, claims)
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.users.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

func (s *Service) current(ctx context.Context, claims *Claims) (identity.User, error) {
	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, ErrInvalidToken
	}
	if err != nil {
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return identity.User{}, ErrTokenRevoked
	}
	return user, nil
}
