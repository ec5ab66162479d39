// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

type Manager struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewManager(client redis.UniversalClient) *Manager {
	return &Manager{
		client: client,
		now:    time.Now,
	}
}

// CreateSession stores a new session in Redis until its expiry.
func (m *Manager) CreateSession(ctx context.Context, session *SessionData) error {
	key := m.sessionKey(session.OperatorID, session.JTI)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	return nil
}

// GetSession retrieves a session and bumps its last activity.
func (m *Manager) GetSession(ctx context.Context, operatorID, jti string) (*SessionData, error) {
	key := m.sessionKey(operatorID, jti)

	data, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.OperatorID != operatorID {
		return nil, fmt.Errorf("session operator mismatch: %w", xerrors.ErrSessionExpired)
	}

	session.LastActivityAt = m.now()
	if updated, err := json.Marshal(session); err == nil {
		// KEEPTTL leaves the original expiry in place
		m.client.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
	}

	return &session, nil
}

// InvalidateSession removes a session from Redis.
func (m *Manager) InvalidateSession(ctx context.Context, operatorID, jti string) error {
	if err := m.client.Del(ctx, m.sessionKey(operatorID, jti)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// InvalidateAllOperatorSessions removes every session of an operator and
// returns the JTIs that were removed.
func (m *Manager) InvalidateAllOperatorSessions(ctx context.Context, operatorID string) ([]string, error) {
	sessions, err := m.GetOperatorSessions(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	jtis := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if err := m.client.Del(ctx, m.sessionKey(operatorID, s.JTI)).Err(); err != nil {
			return jtis, fmt.Errorf("failed to delete session %s: %w", s.JTI, err)
		}
		jtis = append(jtis, s.JTI)
	}
	return jtis, nil
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist for the rest of its life.
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

// GetOperatorSessions returns all live sessions for an operator
func (m *Manager) GetOperatorSessions(ctx context.Context, operatorID string) ([]*SessionData, error) {
	pattern := fmt.Sprintf("session:%s:*", operatorID)

	var sessions []*SessionData
	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := m.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}

		var session SessionData
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}

	return sessions, iter.Err()
}

func (m *Manager) sessionKey(operatorID, jti string) string {
	return fmt.Sprintf("session:%s:%s", operatorID, jti)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
