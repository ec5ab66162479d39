package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"cpaas-console/internal/domain/oauth"
	xerrors "cpaas-console/internal/pkg/errors"
)

// DefaultCorrelationTTL is how long an issued state value stays acceptable.
const DefaultCorrelationTTL = 5 * time.Minute

// CorrelationStore maps state values to the flow that issued them. Consume
// removes the entry whatever the outcome, so a token is accepted at most once.
// When the entry existed but failed validation, Consume returns it together
// with the error so the owning flow can be failed.
type CorrelationStore interface {
	Issue(ctx context.Context, token string, entry oauth.CorrelationEntry) error
	Consume(ctx context.Context, token string, provider oauth.Provider) (*oauth.CorrelationEntry, error)
}

// NewCorrelationToken returns 32 random bytes, base64url encoded.
func NewCorrelationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate correlation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// validateEntry applies the freshness and provider checks shared by stores.
func validateEntry(e oauth.CorrelationEntry, provider oauth.Provider, now time.Time, ttl time.Duration) error {
	if now.Sub(e.IssuedAt) >= ttl {
		return xerrors.ErrCorrelationExpired
	}
	if e.Provider != provider {
		return xerrors.ErrCorrelationMismatch
	}
	return nil
}

// MemoryStore keeps correlation entries in process. Suitable for a single
// gateway instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]oauth.CorrelationEntry
	ttl     time.Duration
	clock   func() time.Time
}

func NewMemoryStore(ttl time.Duration, clock func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultCorrelationTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]oauth.CorrelationEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (s *MemoryStore) Issue(_ context.Context, token string, entry oauth.CorrelationEntry) error {
	if token == "" {
		return fmt.Errorf("empty correlation token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.IssuedAt.IsZero() {
		entry.IssuedAt = s.clock()
	}
	if _, exists := s.entries[token]; exists {
		return fmt.Errorf("correlation token already issued: %w", xerrors.ErrConflict)
	}
	s.entries[token] = entry
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, token string, provider oauth.Provider) (*oauth.CorrelationEntry, error) {
	s.mu.Lock()
	entry, ok := s.entries[token]
	delete(s.entries, token)
	now := s.clock()
	s.mu.Unlock()

	if !ok {
		return nil, xerrors.ErrCorrelationUnknown
	}
	if err := validateEntry(entry, provider, now, s.ttl); err != nil {
		return &entry, err
	}
	return &entry, nil
}

// Prune drops expired entries and reports how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for token, e := range s.entries {
		if now.Sub(e.IssuedAt) >= s.ttl {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// Len is the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
