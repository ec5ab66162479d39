// internal/domain/auth/entity.go
package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Login methods recorded on a profile.
const (
	LoginMethodEmail    = "email"
	LoginMethodGoogle   = "google"
	LoginMethodFacebook = "facebook"
)

// UserProfile is the single flattened shape kept in the console session,
// whatever provider the operator signed in with.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	LoginMethod   string `json:"loginMethod"`
	VerifiedEmail bool   `json:"verified_email,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
}

// rawProfile accepts every profile shape the backend and providers return.
type rawProfile struct {
	ID            json.RawMessage `json:"id"`
	Sub           string          `json:"sub"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Picture       json.RawMessage `json:"picture"`
	VerifiedEmail *bool           `json:"verified_email"`
	EmailVerified *bool           `json:"email_verified"`
	GivenName     string          `json:"given_name"`
	FamilyName    string          `json:"family_name"`
}

// NormalizeProfile decodes a provider-specific profile document. Facebook
// nests the avatar under picture.data.url, Google sends a flat string; both
// end up in UserProfile.Picture.
func NormalizeProfile(loginMethod string, raw []byte) (*UserProfile, error) {
	var rp rawProfile
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	id, err := decodeID(rp.ID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = rp.Sub
	}
	if id == "" {
		return nil, fmt.Errorf("profile has no id")
	}

	picture, err := decodePicture(rp.Picture)
	if err != nil {
		return nil, err
	}

	p := &UserProfile{
		ID:          id,
		Email:       rp.Email,
		Name:        rp.Name,
		Picture:     picture,
		LoginMethod: loginMethod,
		GivenName:   rp.GivenName,
		FamilyName:  rp.FamilyName,
	}
	switch {
	case rp.VerifiedEmail != nil:
		p.VerifiedEmail = *rp.VerifiedEmail
	case rp.EmailVerified != nil:
		p.VerifiedEmail = *rp.EmailVerified
	}
	if p.Name == "" {
		p.Name = strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	}
	return p, nil
}

// ids arrive as JSON strings or numbers depending on the backend
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid profile id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid profile id: %w", err)
	}
	return n.String(), nil
}

func decodePicture(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid picture: %w", err)
		}
		return s, nil
	}

	var nested struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return "", fmt.Errorf("invalid picture: %w", err)
	}
	return nested.Data.URL, nil
}
