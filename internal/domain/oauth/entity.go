// internal/domain/oauth/entity.go
package oauth

import (
	"fmt"
	"strings"
	"time"

	"cpaas-console/internal/domain/auth"
)

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderFacebook:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", s)
	}
}

// MessagePrefix is the upper-case tag used in cross-window messages,
// e.g. GOOGLE_AUTH_SUCCESS.
func (p Provider) MessagePrefix() string {
	return strings.ToUpper(string(p))
}

type FlowState string

const (
	StateIdle             FlowState = "idle"
	StateAwaitingCallback FlowState = "awaiting_callback"
	StateExchanging       FlowState = "exchanging"
	StateAuthenticated    FlowState = "authenticated"
	StateCancelled        FlowState = "cancelled"
	StateFailed           FlowState = "failed"
)

// Terminal reports whether no further signal can change the state.
func (s FlowState) Terminal() bool {
	return s == StateAuthenticated || s == StateCancelled || s == StateFailed
}

// CorrelationEntry is what a correlation token maps to while it is live.
type CorrelationEntry struct {
	Provider Provider  `json:"provider"`
	IssuedAt time.Time `json:"issued_at"`
	FlowID   string    `json:"flow_id"`
}

// FlowView is the externally visible snapshot of a flow.
type FlowView struct {
	ID        string                `json:"id"`
	Provider  Provider              `json:"provider"`
	State     FlowState             `json:"state"`
	Error     string                `json:"error,omitempty"`
	Session   *auth.SessionResponse `json:"session,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// BeginResponse is handed to the dashboard which opens AuthURL in a popup.
type BeginResponse struct {
	FlowID    string    `json:"flow_id"`
	AuthURL   string    `json:"auth_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
