// Package oauth coordinates provider sign-ins that complete in a separate
// browser window and turns their result into a console session.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cpaas-console/internal/domain/auth"
	"cpaas-console/internal/domain/oauth"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const DefaultRetention = 10 * time.Minute

// SessionEstablisher persists a session for a freshly obtained backend token
// and can take it back when the flow cannot accept it.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, req *auth.EstablishRequest) (*auth.SessionResponse, error)
	DiscardSession(ctx context.Context, token string) error
}

// ClientMeta is recorded on the session created by a callback.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type Options struct {
	CorrelationTTL time.Duration
	Retention      time.Duration
	Clock          func() time.Time
}

type Coordinator struct {
	mu        sync.Mutex
	flows     map[string]*flow
	store     CorrelationStore
	providers map[oauth.Provider]IdentityProvider
	sessions  SessionEstablisher
	ttl       time.Duration
	retention time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

func NewCoordinator(
	store CorrelationStore,
	providers map[oauth.Provider]IdentityProvider,
	sessions SessionEstablisher,
	opts Options,
	logger *zap.Logger,
) *Coordinator {
	if opts.CorrelationTTL <= 0 {
		opts.CorrelationTTL = DefaultCorrelationTTL
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Coordinator{
		flows:     make(map[string]*flow),
		store:     store,
		providers: providers,
		sessions:  sessions,
		ttl:       opts.CorrelationTTL,
		retention: opts.Retention,
		clock:     opts.Clock,
		logger:    logger,
	}
}

// Begin issues a correlation token and registers a flow awaiting its callback.
func (c *Coordinator) Begin(ctx context.Context, provider oauth.Provider) (*oauth.BeginResponse, error) {
	p, ok := c.providers[provider]
	if !ok {
		return nil, xerrors.Validation("provider %q is not enabled", provider)
	}

	token, err := NewCorrelationToken()
	if err != nil {
		return nil, err
	}

	now := c.clock()
	f := newFlow(ulid.Make().String(), provider, now, c.ttl)

	entry := oauth.CorrelationEntry{Provider: provider, IssuedAt: now, FlowID: f.id}
	if err := c.store.Issue(ctx, token, entry); err != nil {
		return nil, fmt.Errorf("failed to issue correlation token: %w", err)
	}

	c.mu.Lock()
	_ = f.transition(oauth.StateAwaitingCallback, now)
	c.flows[f.id] = f
	c.mu.Unlock()

	c.logger.Info("oauth flow started",
		zap.String("flow_id", f.id),
		zap.String("provider", string(provider)),
	)

	return &oauth.BeginResponse{
		FlowID:    f.id,
		AuthURL:   p.AuthURL(token),
		ExpiresAt: f.expiresAt,
	}, nil
}

// HandleCallback processes the provider redirect. The returned error wraps
// ErrAuthentication whenever the sign-in did not produce a session; the view
// is non-nil whenever the state matched a known flow.
func (c *Coordinator) HandleCallback(ctx context.Context, provider oauth.Provider, sig oauth.RedirectSignal, meta ClientMeta) (*oauth.FlowView, error) {
	if sig.State == "" {
		return nil, fmt.Errorf("%w: missing state", xerrors.ErrAuthentication)
	}

	entry, consumeErr := c.store.Consume(ctx, sig.State, provider)
	if entry == nil {
		if consumeErr == nil {
			consumeErr = xerrors.ErrCorrelationUnknown
		}
		c.logger.Warn("oauth callback rejected", zap.String("provider", string(provider)), zap.Error(consumeErr))
		return nil, fmt.Errorf("%w: %w", xerrors.ErrAuthentication, consumeErr)
	}

	c.mu.Lock()
	f, ok := c.flows[entry.FlowID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: flow %s no longer exists", xerrors.ErrAuthentication, entry.FlowID)
	}
	if consumeErr != nil {
		return c.failLocked(f, consumeErr)
	}
	if sig.Error != "" {
		return c.failLocked(f, fmt.Errorf("provider returned error: %s", sig.Error))
	}
	if sig.Code == "" && sig.Token == "" {
		return c.failLocked(f, errors.New("callback carried no code or token"))
	}
	if err := f.transition(oauth.StateExchanging, c.clock()); err != nil {
		view := f.view()
		c.mu.Unlock()
		return view, fmt.Errorf("%w: %w", xerrors.ErrAuthentication, err)
	}
	flowProvider := f.provider
	c.mu.Unlock()

	p := c.providers[flowProvider]

	token := sig.Token
	if token == "" {
		var err error
		token, err = p.Exchange(ctx, sig.Code)
		if err != nil {
			return c.fail(f, fmt.Errorf("code exchange failed: %w", err))
		}
	}

	session, err := c.sessions.EstablishSession(ctx, &auth.EstablishRequest{
		BackendToken: token,
		Provider:     string(flowProvider),
		LoginMethod:  string(flowProvider),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Fetch:        p.FetchProfile,
	})
	if err != nil {
		return c.fail(f, err)
	}

	c.mu.Lock()
	if err := f.authenticate(session, c.clock()); err != nil {
		view := f.view()
		c.mu.Unlock()
		// the flow closed while exchanging; the session must not outlive it
		if dErr := c.sessions.DiscardSession(context.WithoutCancel(ctx), session.Token); dErr != nil {
			c.logger.Error("failed to discard session of a closed flow",
				zap.String("flow_id", f.id),
				zap.Error(dErr),
			)
		}
		return view, fmt.Errorf("%w: %w", xerrors.ErrAuthentication, err)
	}
	view := f.view()
	c.mu.Unlock()

	c.logger.Info("oauth flow authenticated",
		zap.String("flow_id", f.id),
		zap.String("provider", string(flowProvider)),
	)
	return view, nil
}

// Signal delivers a window-side signal to a flow.
func (c *Coordinator) Signal(ctx context.Context, flowID string, sig oauth.Signal, meta ClientMeta) (*oauth.FlowView, error) {
	if redirect, ok := sig.(oauth.RedirectSignal); ok {
		c.mu.Lock()
		f, found := c.flows[flowID]
		c.mu.Unlock()
		if !found {
			return nil, fmt.Errorf("flow %s: %w", flowID, xerrors.ErrNotFound)
		}
		return c.HandleCallback(ctx, f.provider, redirect, meta)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", flowID, xerrors.ErrNotFound)
	}
	now := c.clock()

	switch s := sig.(type) {
	case oauth.MessageSignal:
		if f.state.Terminal() {
			// the opener echoing a success we already recorded
			if s.Success && f.state == oauth.StateAuthenticated {
				return f.view(), nil
			}
			return f.view(), fmt.Errorf("flow %s is %s: %w", f.id, f.state, xerrors.ErrConflict)
		}
		// no credential in a message, and an exchange in progress decides
		// the outcome on its own
		if s.Success || f.state == oauth.StateExchanging {
			return f.view(), nil
		}
		reason := s.Error
		if reason == "" {
			reason = "sign-in failed"
		}
		if err := f.fail(fmt.Sprintf("%s: %s", xerrors.ErrAuthentication, reason), now); err != nil {
			return f.view(), err
		}
	case oauth.PopupClosedSignal:
		if f.state.Terminal() {
			return f.view(), fmt.Errorf("flow %s is %s: %w", f.id, f.state, xerrors.ErrConflict)
		}
		if f.state == oauth.StateExchanging {
			return f.view(), nil
		}
		if err := f.cancel(now); err != nil {
			return f.view(), err
		}
		c.logger.Info("oauth flow cancelled", zap.String("flow_id", f.id))
	default:
		return f.view(), xerrors.Validation("unsupported signal %T", sig)
	}
	return f.view(), nil
}

func (c *Coordinator) Get(flowID string) (*oauth.FlowView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", flowID, xerrors.ErrNotFound)
	}
	return f.view(), nil
}

// Wait blocks until the flow is terminal or ctx ends, then returns the
// current view.
func (c *Coordinator) Wait(ctx context.Context, flowID string) (*oauth.FlowView, error) {
	c.mu.Lock()
	f, ok := c.flows[flowID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", flowID, xerrors.ErrNotFound)
	}

	select {
	case <-f.done:
	case <-ctx.Done():
	}
	return c.Get(flowID)
}

// Sweep fails flows whose callback never arrived in time and evicts
// terminal flows past retention.
func (c *Coordinator) Sweep() (expired, evicted int) {
	now := c.clock()

	c.mu.Lock()
	for id, f := range c.flows {
		switch {
		case f.state == oauth.StateAwaitingCallback && !now.Before(f.expiresAt):
			if err := f.fail(fmt.Sprintf("%s: %s", xerrors.ErrAuthentication, xerrors.ErrCorrelationExpired), now); err == nil {
				expired++
			}
		case f.state.Terminal() && now.Sub(f.updatedAt) >= c.retention:
			delete(c.flows, id)
			evicted++
		}
	}
	c.mu.Unlock()

	if p, ok := c.store.(interface{ Prune() int }); ok {
		p.Prune()
	}
	return expired, evicted
}

// Run sweeps on every tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, evicted := c.Sweep()
			if expired > 0 || evicted > 0 {
				c.logger.Debug("oauth flows swept", zap.Int("expired", expired), zap.Int("evicted", evicted))
			}
		}
	}
}

func (c *Coordinator) fail(f *flow, cause error) (*oauth.FlowView, error) {
	c.mu.Lock()
	return c.failLocked(f, cause)
}

// failLocked must be called with c.mu held and releases it.
func (c *Coordinator) failLocked(f *flow, cause error) (*oauth.FlowView, error) {
	defer c.mu.Unlock()

	err := fmt.Errorf("%w: %w", xerrors.ErrAuthentication, cause)
	if tErr := f.fail(err.Error(), c.clock()); tErr != nil {
		return f.view(), tErr
	}
	c.logger.Warn("oauth flow failed",
		zap.String("flow_id", f.id),
		zap.String("provider", string(f.provider)),
		zap.Error(cause),
	)
	return f.view(), err
}
