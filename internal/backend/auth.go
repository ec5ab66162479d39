package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cpaas-console/internal/domain/auth"
)

// SignInURL is where the popup is sent when the backend brokers the provider.
func (c *Client) SignInURL(provider, callback, state string) string {
	q := url.Values{}
	q.Set("callback", callback)
	q.Set("state", state)
	return fmt.Sprintf("%s/auth/%s/signin?%s", c.cfg.AuthURL, url.PathEscape(provider), q.Encode())
}

func (c *Client) Login(ctx context.Context, email, password string) (*auth.BackendTokenResponse, error) {
	raw, err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		url:    c.cfg.AuthURL + "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	return decodeToken("login", raw)
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*auth.BackendTokenResponse, error) {
	raw, err := c.do(ctx, request{
		op:     "signup",
		method: http.MethodPost,
		url:    c.cfg.AuthURL + "/auth/signup",
		body:   map[string]string{"name": name, "email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	return decodeToken("signup", raw)
}

// ExchangeCode trades a provider authorization code for a backend token.
func (c *Client) ExchangeCode(ctx context.Context, provider, code, redirectURI string) (string, error) {
	raw, err := c.do(ctx, request{
		op:     "exchange code",
		method: http.MethodPost,
		url:    fmt.Sprintf("%s/auth/%s/exchange", c.cfg.AuthURL, url.PathEscape(provider)),
		body:   map[string]string{"code": code, "redirect_uri": redirectURI},
	})
	if err != nil {
		return "", err
	}
	tok, err := decodeToken("exchange code", raw)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// FetchProfile returns the raw profile document for the token's user.
func (c *Client) FetchProfile(ctx context.Context, token string) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:     "fetch profile",
		method: http.MethodGet,
		url:    c.cfg.AuthURL + "/api/auth/profile",
		bearer: token,
	})
}

func decodeToken(op string, raw json.RawMessage) (*auth.BackendTokenResponse, error) {
	var tok auth.BackendTokenResponse
	if err := decode(raw, &tok); err != nil {
		return nil, fmt.Errorf("%s: failed to decode token response: %w", op, err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("%s: backend response has no token", op)
	}
	return &tok, nil
}
