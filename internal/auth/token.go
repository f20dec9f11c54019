package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails signature or expiry validation.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the claims carried by a TaskBox access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager creates and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager returns a TokenManager signing with the given secret.
// Tokens expire after the given duration.
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// CreateToken issues a signed access token for the given user.
func (tm *TokenManager) CreateToken(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return signed, nil
}

// VerifyToken validates the token signature and expiry and returns its claims.
func (tm *TokenManager) VerifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expiry extracts the expiry time from a token without validating its signature.
//
// Used when blacklisting tokens on logout, where the expiry bounds how long the
// blacklist entry must be kept. Falls back to now+15m when the token carries no
// expiry claim.
func (tm *TokenManager) Expiry(token string) time.Time {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(15 * time.Minute)
	}
	return claims.ExpiresAt.Time
}

// UserID parses the subject claim as a user ID.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in token: %v", err)
	}
	return id, nil
}
