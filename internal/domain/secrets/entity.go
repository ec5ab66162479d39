// internal/domain/secrets/entity.go
package secrets

import (
	"fmt"
	"strings"
	"time"
)

// Well-known keys the console reads back when a request omits them.
const (
	KeyFacebookAccessToken = "facebookAccessToken"
	KeyFacebookPageID      = "facebookPageId"
	KeyWhatsAppToken       = "whatsappToken"
)

// Bundle is a flat mapping of integration credentials, stored verbatim.
type Bundle map[string]string

// Get returns the trimmed value for key, or "".
func (b Bundle) Get(key string) string {
	if b == nil {
		return ""
	}
	return strings.TrimSpace(b[key])
}

// Validate rejects blank keys.
func (b Bundle) Validate() error {
	for k := range b {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("secret keys must not be empty")
		}
	}
	return nil
}

// StoredBundle is the persisted row.
type StoredBundle struct {
	OperatorID string    `json:"operator_id" db:"operator_id"`
	Secrets    Bundle    `json:"secrets" db:"secrets"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// PutRequest replaces the whole bundle.
type PutRequest struct {
	Secrets Bundle `json:"secrets" binding:"required"`
}
