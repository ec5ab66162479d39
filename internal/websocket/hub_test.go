package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	wstypes "cpaas-console/internal/domain/websocket"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/session"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticValidator map[string]string

func (v staticValidator) ValidateToken(_ context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
	op, ok := v[token]
	if !ok {
		return nil, nil, ErrInvalidToken
	}
	claims := &jwt.Claims{OperatorID: op, Provider: "local"}
	claims.RegisteredClaims = gjwt.RegisteredClaims{ID: "jti-" + op}
	return claims, &session.SessionData{OperatorID: op}, nil
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(staticValidator{"tok-1": "op-1", "tok-2": "op-2"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, err := hub.AuthenticateClient(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, auth)
		hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	}))

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	require.Equal(t, wstypes.EventTypeConnected, msg.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *wstypes.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wstypes.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func TestRejectsUnknownToken(t *testing.T) {
	_, srv := startHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispatchEventsReachOnlyTheirOperator(t *testing.T) {
	hub, srv := startHub(t)
	conn1 := dial(t, srv, "tok-1")
	conn2 := dial(t, srv, "tok-2")

	hub.BroadcastDispatchProgress("op-1", wstypes.DispatchProgressData{JobID: "job-1", Current: 3, Succeeded: 2, Total: 10})

	msg := read(t, conn1)
	assert.Equal(t, wstypes.EventTypeDispatchProgress, msg.Type)
	raw, _ := json.Marshal(msg.Data)
	var progress wstypes.DispatchProgressData
	require.NoError(t, json.Unmarshal(raw, &progress))
	assert.Equal(t, 3, progress.Current)
	assert.Equal(t, 10, progress.Total)

	// op-2 sees nothing but its own pong.
	require.NoError(t, conn2.WriteJSON(wstypes.NewMessage(wstypes.EventTypePing, nil)))
	assert.Equal(t, wstypes.EventTypePong, read(t, conn2).Type)
}

func TestCompletedAlsoSendsMetricsUpdate(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "tok-1")

	hub.BroadcastDispatchCompleted("op-1", wstypes.DispatchCompletedData{JobID: "job-1", Succeeded: 1, Total: 1})

	assert.Equal(t, wstypes.EventTypeDispatchCompleted, read(t, conn).Type)
	assert.Equal(t, wstypes.EventTypeMetricsUpdate, read(t, conn).Type)
}

func TestUnsubscribeStopsChannel(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "tok-1")

	require.NoError(t, conn.WriteJSON(wstypes.NewMessage(wstypes.EventTypeUnsubscribe, wstypes.UnsubscribeRequest{
		Channels: []wstypes.ChannelType{wstypes.ChannelMetrics},
	})))
	assert.Equal(t, wstypes.EventTypeUnsubscribe, read(t, conn).Type)

	hub.BroadcastMetricsUpdate("op-1", "manual")
	hub.ForceLogout("op-1", "jti-op-1", "logout_all")

	msg := read(t, conn)
	assert.Equal(t, wstypes.EventTypeForceLogout, msg.Type)
}

func TestSubscribeIgnoresUnknownChannels(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "tok-1")

	require.NoError(t, conn.WriteJSON(wstypes.NewMessage(wstypes.EventTypeSubscribe, wstypes.SubscribeRequest{
		Channels: []wstypes.ChannelType{"billing", wstypes.ChannelDispatch},
	})))

	msg := read(t, conn)
	require.Equal(t, wstypes.EventTypeSubscribe, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"dispatch"}, data["channels"])
}

func TestTotalClients(t *testing.T) {
	hub, srv := startHub(t)
	dial(t, srv, "tok-1")
	dial(t, srv, "tok-1")

	assert.Equal(t, 2, hub.GetConnectedClients("op-1"))
	assert.True(t, hub.IsOperatorConnected("op-1"))
	assert.False(t, hub.IsOperatorConnected("op-2"))
	assert.Equal(t, 2, hub.TotalClients())
}
