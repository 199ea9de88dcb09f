// Package auth issues and validates the bearer tokens that protect the API
// when authentication is enabled.
package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing API access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for subject, the name of
	// the client calling the API.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the token string and extracts its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
