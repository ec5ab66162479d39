// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const PurposeConsole = "console"

// Claims carried by a console session token. The subject is the operator id
// returned by the auth backend; the JTI keys the server-side session.
type Claims struct {
	OperatorID  string `json:"operator_id"`
	Provider    string `json:"provider"`     // local, google, facebook
	LoginMethod string `json:"login_method"` // password or oauth
	Purpose     string `json:"purpose"`
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
