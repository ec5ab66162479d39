package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cpaas-console/internal/domain/auth"
	xerrors "cpaas-console/internal/pkg/errors"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	loginErr   error
	profile    string
	profileErr error
}

func (b *fakeBackend) Login(_ context.Context, email, _ string) (*auth.BackendTokenResponse, error) {
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	return &auth.BackendTokenResponse{Token: "backend-" + email}, nil
}

func (b *fakeBackend) Signup(_ context.Context, _, email, _ string) (*auth.BackendTokenResponse, error) {
	return &auth.BackendTokenResponse{Token: "backend-" + email}, nil
}

func (b *fakeBackend) FetchProfile(context.Context, string) (json.RawMessage, error) {
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	return json.RawMessage(b.profile), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	logout []string
}

func (n *recordingNotifier) ForceLogout(operatorID, jti, _ string) {
	n.mu.Lock()
	n.logout = append(n.logout, operatorID+"/"+jti)
	n.mu.Unlock()
}

type harness struct {
	mr       *miniredis.Miniredis
	backend  *fakeBackend
	notifier *recordingNotifier
	svc      *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwtManager := jwt.NewManager(jwt.Config{
		Issuer: "cpaas-console", Audience: "cpaas-operators", TTL: time.Hour, KID: "test",
	}, key, &key.PublicKey)

	backend := &fakeBackend{profile: `{"id":42,"email":"ops@example.com","name":"Ops","picture":"https://img/p.png"}`}
	notifier := &recordingNotifier{}
	svc := NewAuthService(backend, jwtManager, session.NewManager(client), session.NewRateLimiter(client), notifier, zap.NewNop())
	return &harness{mr: mr, backend: backend, notifier: notifier, svc: svc}
}

func TestLoginEstablishesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "42", resp.Profile.ID)
	assert.Equal(t, auth.LoginMethodEmail, resp.Profile.LoginMethod)

	claims, sess, err := h.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.OperatorID)
	assert.Equal(t, "backend-ops@example.com", sess.BackendToken)
	assert.Equal(t, "10.0.0.1", sess.IPAddress)
}

func TestLoginPropagatesBackendRejection(t *testing.T) {
	h := newHarness(t)
	h.backend.loginErr = xerrors.ErrUnauthorized

	_, err := h.svc.Login(context.Background(), &auth.LoginRequest{Email: "ops@example.com", Password: "bad"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t)
	h.backend.loginErr = xerrors.ErrUnauthorized
	ctx := context.Background()
	req := &auth.LoginRequest{Email: "ops@example.com", Password: "bad", IPAddress: "10.0.0.9"}

	for i := 0; i < 5; i++ {
		_, err := h.svc.Login(ctx, req)
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	}
	_, err := h.svc.Login(ctx, req)
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)
}

func TestProfileFailureCreatesNoSession(t *testing.T) {
	h := newHarness(t)
	h.backend.profileErr = xerrors.ErrUpstream

	_, err := h.svc.Signup(context.Background(), &auth.SignupRequest{Name: "Ops", Email: "ops@example.com", Password: "secret"})
	require.ErrorIs(t, err, xerrors.ErrUpstream)
	assert.Empty(t, h.mr.Keys())
}

func TestEstablishSessionUsesEmbeddedUser(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.EstablishSession(context.Background(), &auth.EstablishRequest{
		BackendToken: "tok",
		Provider:     "facebook",
		LoginMethod:  auth.LoginMethodFacebook,
		User:         json.RawMessage(`{"id":"fb-1","name":"Ops","picture":{"data":{"url":"https://img/fb.png"}}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img/fb.png", resp.Profile.Picture)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret"})
	require.NoError(t, err)
	claims, _, err := h.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, claims.OperatorID, claims.ID, resp.ExpiresAt))

	_, _, err = h.svc.ValidateToken(ctx, resp.Token)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, []string{"42/" + claims.ID}, h.notifier.logout)
}

func TestLogoutAllSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret"})
	require.NoError(t, err)
	second, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret"})
	require.NoError(t, err)

	sessions, err := h.svc.GetActiveSessions(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, h.svc.LogoutAllSessions(ctx, "42"))

	for _, tok := range []string{first.Token, second.Token} {
		_, _, err := h.svc.ValidateToken(ctx, tok)
		assert.Error(t, err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.svc.ValidateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestGetProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret"})
	require.NoError(t, err)
	claims, _, err := h.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)

	profile, err := h.svc.GetProfile(ctx, claims.OperatorID, claims.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", profile.Email)
}

func TestDiscardSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Login(ctx, &auth.LoginRequest{Email: "ops@example.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, h.svc.DiscardSession(ctx, resp.Token))

	_, _, err = h.svc.ValidateToken(ctx, resp.Token)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	sessions, err := h.svc.GetActiveSessions(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, h.notifier.logout)

	assert.ErrorIs(t, h.svc.DiscardSession(ctx, "not-a-jwt"), xerrors.ErrUnauthorized)
}
