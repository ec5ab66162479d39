// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
	now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
		now:      time.Now,
	}
}

// Issued describes a freshly signed console token.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Generate signs a console session token for an operator.
func (g *Generator) Generate(operatorID, provider, loginMethod string) (*Issued, error) {
	if g.priv == nil {
		return nil, fmt.Errorf("jwt generator has nil private key")
	}
	if operatorID == "" {
		return nil, fmt.Errorf("operator id is required")
	}

	now := g.now()
	jti := ulid.Make().String()
	expiresAt := now.Add(g.Ttl)

	claims := &Claims{
		OperatorID:  operatorID,
		Provider:    provider,
		LoginMethod: loginMethod,
		Purpose:     PurposeConsole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   operatorID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Issued{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}
