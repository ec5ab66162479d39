package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/domain/role"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{AuthURL: srv.URL, MessagingURL: srv.URL, MetricsURL: srv.URL}, zap.NewNop())
}

func readJSON(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestSendSMSPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/sendText", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body := readJSON(t, r)
		assert.Equal(t, "sms", body["channel"])
		assert.Equal(t, "CPAAS_TEST", body["service_name"])
		assert.Equal(t, "P", body["notification_type"])
		assert.Equal(t, "+15551234567", body["phone_number"])
		assert.Equal(t, "Hello", body["message_details"])
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	})

	raw, err := c.Send(context.Background(), messaging.Outbound{
		Channel:      messaging.ChannelSMS,
		Recipient:    messaging.Recipient{PhoneNumber: "+15551234567"},
		Message:      "Hello",
		BackendToken: "tok",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"msg-1"}`, string(raw))
}

func TestSendEmailUsesSubjectAsServiceName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/sendEmail", r.URL.Path)
		body := readJSON(t, r)
		assert.Equal(t, "Quarterly update", body["service_name"])
		assert.Equal(t, "ops@example.com", body["email"])
		assert.Equal(t, "", body["phone_number"])
		w.WriteHeader(http.StatusCreated)
	})

	raw, err := c.SendEmail(context.Background(), "", "ops@example.com", "Quarterly update", "hi")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestSendRejectsNon2xxAcceptedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := c.SendWhatsApp(context.Background(), "", "+1555", "hi")
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNoContent, se.StatusCode)
}

func TestFacebookCallsUseRawAuthorization(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		assert.Equal(t, "EAAB-page-token", r.Header.Get("Authorization"))
		body := readJSON(t, r)
		assert.Equal(t, "launch day", body["text"])
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("queued"))
	})
	ctx := context.Background()

	raw, err := c.Send(ctx, messaging.Outbound{
		Channel:     messaging.ChannelFacebookMessenger,
		Recipient:   messaging.Recipient{PhoneNumber: "24680"},
		Message:     "launch day",
		AccessToken: "EAAB-page-token",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `"queued"`, string(raw))

	_, err = c.Send(ctx, messaging.Outbound{
		Channel:     messaging.ChannelFacebookPagePost,
		Message:     "launch day",
		AccessToken: "EAAB-page-token",
		PageID:      "1357",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/facebook/send-message/24680", "/api/facebook/post?page-id=1357"}, paths)
}

func TestStatusErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})

	_, err := c.Login(context.Background(), "a@example.com", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestNetworkErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{MessagingURL: srv.URL}, zap.NewNop())

	_, err := c.SendSMS(context.Background(), "", "+1", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUpstream)
}

func TestLoginDecodesToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"backend-jwt","user":{"id":"u1"}}`))
	})

	tok, err := c.Login(context.Background(), "a@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "backend-jwt", tok.Token)
	assert.JSONEq(t, `{"id":"u1"}`, string(tok.User))
}

func TestExchangeRequiresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/google/exchange", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.ExchangeCode(context.Background(), "google", "code-1", "http://cb")
	require.Error(t, err)
}

func TestSignInURL(t *testing.T) {
	c := NewClient(Config{AuthURL: "http://auth.local"}, zap.NewNop())
	u := c.SignInURL("google", "http://console/oauth/callback", "abc")
	assert.Equal(t, "http://auth.local/auth/google/signin?callback=http%3A%2F%2Fconsole%2Foauth%2Fcallback&state=abc", u)
}

func TestRolesRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"r1","roleName":"ops","permissions":["READ"]}]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			assert.Equal(t, "/api/auth/roles/r1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	roles, err := c.ListRoles(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "ops", roles[0].RoleName)

	created, err := c.CreateRole(ctx, "tok", role.Role{RoleName: "audit", Permissions: []role.Permission{role.PermissionRead}})
	require.NoError(t, err)
	assert.Equal(t, "audit", created.RoleName)

	require.NoError(t, c.DeleteRole(ctx, "tok", "r1"))
}

func TestUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`[{"name":"Mon","messages":12,"voice":3,"video":1,"api":40}]`))
	})

	points, err := c.Usage(context.Background(), "tok", 7)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.EqualValues(t, 40, points[0].API)
}
