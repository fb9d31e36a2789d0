package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the typ claim.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

const audience = "bankverify-admin"

// Claims are the custom JWT claims for staff tokens.
type Claims struct {
	UserID  string `json:"uid"`
	Role    string `json:"role"`
	Version int    `json:"ver"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens for one secret.
type TokenManager struct {
	issuer string
	secret []byte
	now    func() time.Time
}

// NewTokenManager builds a manager for the given issuer and signing key.
func NewTokenManager(issuer, signingKey string) *TokenManager {
	return &TokenManager{issuer: issuer, secret: []byte(signingKey), now: func() time.Time { return time.Now().UTC() }}
}

// Mint signs a token of tokenType valid for ttl.
func (m *TokenManager) Mint(userID, role string, version int, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:  userID,
		Role:    role,
		Version: version,
		Type:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry, issuer and audience, and checks the token type.
func (m *TokenManager) Parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, tokenType)
	}
	if claims.UserID == "" {
		return nil, errors.Join(ErrInvalidToken, errors.New("missing uid"))
	}
	return claims, nil
}
