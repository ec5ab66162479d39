// internal/pkg/session/types.go
package session

import (
	"time"

	"cpaas-console/internal/domain/auth"
)

// SessionData is the server-side half of a console session. The browser
// only ever sees the console JWT; the backend bearer token stays here.
type SessionData struct {
	JTI            string            `json:"jti"`
	OperatorID     string            `json:"operator_id"`
	BackendToken   string            `json:"backend_token"`
	Provider       string            `json:"provider"` // local, google, facebook
	LoginMethod    string            `json:"login_method"`
	Profile        *auth.UserProfile `json:"profile,omitempty"`
	IPAddress      string            `json:"ip_address,omitempty"`
	UserAgent      string            `json:"user_agent,omitempty"`
	LoginAt        time.Time         `json:"login_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
}
