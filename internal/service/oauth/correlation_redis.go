package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cpaas-console/internal/domain/oauth"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares correlation entries between gateway instances. Entries
// are read and deleted atomically with GETDEL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	clock  func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration, clock func() time.Time) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultCorrelationTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{client: client, ttl: ttl, clock: clock}
}

func (s *RedisStore) key(token string) string {
	return fmt.Sprintf("oauth:state:%s", token)
}

func (s *RedisStore) Issue(ctx context.Context, token string, entry oauth.CorrelationEntry) error {
	if token == "" {
		return fmt.Errorf("empty correlation token")
	}
	if entry.IssuedAt.IsZero() {
		entry.IssuedAt = s.clock()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation entry: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(token), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store correlation entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("correlation token already issued: %w", xerrors.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, token string, provider oauth.Provider) (*oauth.CorrelationEntry, error) {
	data, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrCorrelationUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume correlation entry: %w", err)
	}

	var entry oauth.CorrelationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal correlation entry: %w", err)
	}

	// Redis expiry is coarse; the clock decides.
	if err := validateEntry(entry, provider, s.clock(), s.ttl); err != nil {
		return &entry, err
	}
	return &entry, nil
}
