// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = 5
	loginWindow      = 15 * time.Minute
	maxOAuthBegins   = 20
	oauthBeginWindow = 15 * time.Minute
)

type RateLimiter struct {
	client redis.UniversalClient
}

func NewRateLimiter(client redis.UniversalClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLoginAttempt checks if login attempt is allowed
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)
	return r.allow(ctx, key, maxLoginAttempts, loginWindow)
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)
	return r.client.Del(ctx, key).Err()
}

// CheckOAuthBegin limits how many sign-in popups one client can open.
func (r *RateLimiter) CheckOAuthBegin(ctx context.Context, ip string) (bool, error) {
	key := fmt.Sprintf("ratelimit:oauth_begin:%s", ip)
	ok, _, err := r.allow(ctx, key, maxOAuthBegins, oauthBeginWindow)
	return ok, err
}

func (r *RateLimiter) allow(ctx context.Context, key string, max int64, window time.Duration) (bool, int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	// Set expiration on first attempt
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= max, remaining, nil
}
