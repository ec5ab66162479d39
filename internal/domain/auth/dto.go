// internal/domain/auth/dto.go
package auth

import (
	"context"
	"encoding/json"
	"time"
)

// LoginRequest for email/password login
type LoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// SignupRequest for operator registration
type SignupRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// BackendTokenResponse is what the auth backend answers to login, signup
// and code exchange. User is optional; the profile endpoint is authoritative.
type BackendTokenResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// SessionResponse is returned to the dashboard after any successful sign-in.
type SessionResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	Profile   *UserProfile `json:"profile"`
}

// ProfileFetcher returns the raw profile document for a backend token.
type ProfileFetcher func(ctx context.Context, token string) (json.RawMessage, error)

// EstablishRequest carries a freshly obtained backend token into session
// creation. The profile is fetched before anything is persisted.
type EstablishRequest struct {
	BackendToken string
	Provider     string
	LoginMethod  string
	IPAddress    string
	UserAgent    string
	// User is the profile embedded in a login response, used when Fetch is nil.
	User  json.RawMessage
	Fetch ProfileFetcher
}
