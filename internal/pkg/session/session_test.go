package session

import (
	"context"
	"testing"
	"time"

	"cpaas-console/internal/domain/auth"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestManagerSessionLifecycle(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(client)
	ctx := context.Background()

	s := &SessionData{
		JTI:          "jti-1",
		OperatorID:   "op-1",
		BackendToken: "backend-token",
		Provider:     "google",
		Profile:      &auth.UserProfile{ID: "op-1", Picture: "https://p"},
		LoginAt:      time.Now(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, m.CreateSession(ctx, s))
	assert.True(t, mr.Exists("session:op-1:jti-1"))

	got, err := m.GetSession(ctx, "op-1", "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "backend-token", got.BackendToken)
	assert.Equal(t, "https://p", got.Profile.Picture)
	assert.Greater(t, mr.TTL("session:op-1:jti-1"), 50*time.Minute)

	_, err = m.GetSession(ctx, "op-2", "jti-1")
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)

	require.NoError(t, m.InvalidateSession(ctx, "op-1", "jti-1"))
	_, err = m.GetSession(ctx, "op-1", "jti-1")
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestManagerRejectsExpiredSession(t *testing.T) {
	_, client := newTestRedis(t)
	m := NewManager(client)

	err := m.CreateSession(context.Background(), &SessionData{
		JTI: "j", OperatorID: "op", ExpiresAt: time.Now().Add(-time.Second),
	})
	require.Error(t, err)
}

func TestManagerSessionExpiresInRedis(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(client)
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, &SessionData{
		JTI: "j", OperatorID: "op", ExpiresAt: time.Now().Add(time.Minute),
	}))
	mr.FastForward(2 * time.Minute)

	_, err := m.GetSession(ctx, "op", "j")
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestManagerInvalidateAll(t *testing.T) {
	_, client := newTestRedis(t)
	m := NewManager(client)
	ctx := context.Background()

	for _, jti := range []string{"a", "b"} {
		require.NoError(t, m.CreateSession(ctx, &SessionData{
			JTI: jti, OperatorID: "op", ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
	require.NoError(t, m.CreateSession(ctx, &SessionData{
		JTI: "c", OperatorID: "other", ExpiresAt: time.Now().Add(time.Hour),
	}))

	jtis, err := m.InvalidateAllOperatorSessions(ctx, "op")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, jtis)

	left, err := m.GetOperatorSessions(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestBlacklist(t *testing.T) {
	mr, client := newTestRedis(t)
	m := NewManager(client)
	ctx := context.Background()

	require.NoError(t, m.BlacklistToken(ctx, "jti-x", time.Minute))
	ok, err := m.IsTokenBlacklisted(ctx, "jti-x")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = m.IsTokenBlacklisted(ctx, "jti-x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiterLogin(t *testing.T) {
	mr, client := newTestRedis(t)
	r := NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < maxLoginAttempts; i++ {
		ok, _, err := r.CheckLoginAttempt(ctx, "1.2.3.4", "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, remaining, err := r.CheckLoginAttempt(ctx, "1.2.3.4", "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, remaining)

	require.NoError(t, r.ResetLoginAttempts(ctx, "1.2.3.4", "a@example.com"))
	ok, _, err = r.CheckLoginAttempt(ctx, "1.2.3.4", "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(loginWindow + time.Second)
	assert.False(t, mr.Exists("ratelimit:login:1.2.3.4:a@example.com"))
}

func TestRateLimiterOAuthBegin(t *testing.T) {
	_, client := newTestRedis(t)
	r := NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < maxOAuthBegins; i++ {
		ok, err := r.CheckOAuthBegin(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := r.CheckOAuthBegin(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}
