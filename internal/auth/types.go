package auth

import (
	"errors"
	"time"
)

// IssuedToken is the stored record of an access token.
type IssuedToken struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// Active reports whether the token is unrevoked and unexpired at now.
func (t *IssuedToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Sentinel errors for authentication.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
)
