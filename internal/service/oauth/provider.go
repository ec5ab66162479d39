package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cpaas-console/internal/backend"
	"cpaas-console/internal/domain/oauth"
	xerrors "cpaas-console/internal/pkg/errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

const (
	ModeBackend = "backend"
	ModeDirect  = "direct"

	googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	facebookMeURL     = "https://graph.facebook.com/me?fields=id,name,email,picture"
)

// IdentityProvider is one sign-in provider as seen by the coordinator.
type IdentityProvider interface {
	Name() oauth.Provider
	AuthURL(state string) string
	// Exchange trades an authorization code for a session token.
	Exchange(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, token string) (json.RawMessage, error)
}

// CallbackURL appends the provider to the gateway callback route so the
// callback can check the state against the right provider.
func CallbackURL(base string, provider oauth.Provider) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?provider=" + url.QueryEscape(string(provider))
	}
	q := u.Query()
	q.Set("provider", string(provider))
	u.RawQuery = q.Encode()
	return u.String()
}

// BackendProvider lets the CPaaS auth backend broker the provider.
type BackendProvider struct {
	name     oauth.Provider
	client   *backend.Client
	callback string
}

func NewBackendProvider(name oauth.Provider, client *backend.Client, callbackBase string) *BackendProvider {
	return &BackendProvider{
		name:     name,
		client:   client,
		callback: CallbackURL(callbackBase, name),
	}
}

func (p *BackendProvider) Name() oauth.Provider { return p.name }

func (p *BackendProvider) AuthURL(state string) string {
	return p.client.SignInURL(string(p.name), p.callback, state)
}

func (p *BackendProvider) Exchange(ctx context.Context, code string) (string, error) {
	return p.client.ExchangeCode(ctx, string(p.name), code, p.callback)
}

func (p *BackendProvider) FetchProfile(ctx context.Context, token string) (json.RawMessage, error) {
	return p.client.FetchProfile(ctx, token)
}

// DirectProvider talks to Google or Facebook itself. The provider access
// token becomes the session token.
type DirectProvider struct {
	name        oauth.Provider
	config      *oauth2.Config
	userinfoURL string
}

func NewDirectProvider(name oauth.Provider, clientID, clientSecret, callbackBase string) (*DirectProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%s: client id and secret are required in direct mode", name)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  CallbackURL(callbackBase, name),
	}

	p := &DirectProvider{name: name, config: cfg}
	switch name {
	case oauth.ProviderGoogle:
		cfg.Endpoint = google.Endpoint
		cfg.Scopes = []string{"openid", "email", "profile"}
		p.userinfoURL = googleUserinfoURL
	case oauth.ProviderFacebook:
		cfg.Endpoint = facebook.Endpoint
		cfg.Scopes = []string{"email", "public_profile"}
		p.userinfoURL = facebookMeURL
	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
	return p, nil
}

func (p *DirectProvider) Name() oauth.Provider { return p.name }

func (p *DirectProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *DirectProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s code exchange: %w: %v", p.name, xerrors.ErrUpstream, err)
	}
	return tok.AccessToken, nil
}

func (p *DirectProvider) FetchProfile(ctx context.Context, token string) (json.RawMessage, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo: %w: %v", p.name, xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &backend.StatusError{Op: string(p.name) + " userinfo", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// NewProviders builds the provider set for the configured mode.
func NewProviders(mode string, client *backend.Client, callbackBase string, creds map[oauth.Provider][2]string) (map[oauth.Provider]IdentityProvider, error) {
	out := make(map[oauth.Provider]IdentityProvider, 2)
	for _, name := range []oauth.Provider{oauth.ProviderGoogle, oauth.ProviderFacebook} {
		switch mode {
		case "", ModeBackend:
			out[name] = NewBackendProvider(name, client, callbackBase)
		case ModeDirect:
			c := creds[name]
			if c[0] == "" {
				// provider not configured for direct mode
				continue
			}
			p, err := NewDirectProvider(name, c[0], c[1], callbackBase)
			if err != nil {
				return nil, err
			}
			out[name] = p
		default:
			return nil, fmt.Errorf("unknown oauth mode %q", mode)
		}
	}
	return out, nil
}
