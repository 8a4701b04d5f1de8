// Package session keeps opaque bearer tokens of admin logins.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const DefaultTTL = 24 * time.Hour

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store issues and checks admin sessions. Validate returns
// apperrors.ErrInvalidSession for unknown or expired tokens.
type Store interface {
	Create(ctx context.Context, username string) (Session, error)
	Validate(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, token string) error
	// Sweep drops expired sessions and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
