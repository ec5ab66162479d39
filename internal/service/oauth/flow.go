package oauth

import (
	"fmt"
	"time"

	"cpaas-console/internal/domain/auth"
	"cpaas-console/internal/domain/oauth"
	xerrors "cpaas-console/internal/pkg/errors"
)

var transitions = map[oauth.FlowState][]oauth.FlowState{
	oauth.StateIdle:             {oauth.StateAwaitingCallback, oauth.StateCancelled, oauth.StateFailed},
	oauth.StateAwaitingCallback: {oauth.StateExchanging, oauth.StateCancelled, oauth.StateFailed},
	oauth.StateExchanging:       {oauth.StateAuthenticated, oauth.StateFailed},
}

// flow is one pending sign-in. All fields are guarded by the coordinator lock.
type flow struct {
	id        string
	provider  oauth.Provider
	state     oauth.FlowState
	reason    string
	session   *auth.SessionResponse
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
	// done is closed once the flow reaches a terminal state.
	done chan struct{}
}

func newFlow(id string, provider oauth.Provider, now time.Time, ttl time.Duration) *flow {
	return &flow{
		id:        id,
		provider:  provider,
		state:     oauth.StateIdle,
		createdAt: now,
		updatedAt: now,
		expiresAt: now.Add(ttl),
		done:      make(chan struct{}),
	}
}

func (f *flow) transition(to oauth.FlowState, now time.Time) error {
	for _, allowed := range transitions[f.state] {
		if allowed == to {
			f.state = to
			f.updatedAt = now
			if to.Terminal() {
				close(f.done)
			}
			return nil
		}
	}
	return fmt.Errorf("flow %s: %s -> %s: %w", f.id, f.state, to, xerrors.ErrConflict)
}

func (f *flow) fail(reason string, now time.Time) error {
	if err := f.transition(oauth.StateFailed, now); err != nil {
		return err
	}
	f.reason = reason
	return nil
}

func (f *flow) cancel(now time.Time) error {
	if err := f.transition(oauth.StateCancelled, now); err != nil {
		return err
	}
	f.reason = xerrors.ErrCancelled.Error()
	return nil
}

func (f *flow) authenticate(s *auth.SessionResponse, now time.Time) error {
	if err := f.transition(oauth.StateAuthenticated, now); err != nil {
		return err
	}
	f.session = s
	return nil
}

func (f *flow) view() *oauth.FlowView {
	return &oauth.FlowView{
		ID:        f.id,
		Provider:  f.provider,
		State:     f.state,
		Error:     f.reason,
		Session:   f.session,
		CreatedAt: f.createdAt,
		UpdatedAt: f.updatedAt,
		ExpiresAt: f.expiresAt,
	}
}
