// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	wstypes "cpaas-console/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// ClientAuth is what the hub learned about the operator at handshake time.
type ClientAuth struct {
	OperatorID string
	SessionID  string
	Provider   string
	Email      string
}

// Client is one dashboard tab. The read pump feeds events to the hub and
// the write pump drains send; closing ctx stops both.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	auth ClientAuth

	mu       sync.RWMutex
	channels map[wstypes.ChannelType]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		auth:     *auth,
		channels: make(map[wstypes.ChannelType]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func knownChannel(ch wstypes.ChannelType) bool {
	switch ch {
	case wstypes.ChannelDispatch, wstypes.ChannelMetrics, wstypes.ChannelSystem:
		return true
	}
	return false
}

// Subscribe reports whether the channel exists and is now followed.
func (c *Client) Subscribe(ch wstypes.ChannelType) bool {
	if !knownChannel(ch) {
		return false
	}
	c.mu.Lock()
	c.channels[ch] = struct{}{}
	c.mu.Unlock()
	return true
}

func (c *Client) Unsubscribe(ch wstypes.ChannelType) {
	c.mu.Lock()
	delete(c.channels, ch)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(ch wstypes.ChannelType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[ch]
	return ok
}

func (c *Client) GetOperatorID() string { return c.auth.OperatorID }

// ReadPump blocks until the peer goes away or the client is closed.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for c.ctx.Err() == nil {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("operator_id", c.auth.OperatorID),
					zap.Error(err),
				)
			}
			return
		}
		c.dispatch(raw)
	}
}

// WritePump owns every write to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		select {
		case <-c.ctx.Done():
			_ = write(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			if err := write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(raw []byte) {
	msg, err := wstypes.ParseMessage(raw)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))
	case wstypes.EventTypeSubscribe:
		c.changeSubscriptions(msg, true)
	case wstypes.EventTypeUnsubscribe:
		c.changeSubscriptions(msg, false)
	default:
		if err := c.hub.HandleClientMessage(c.ctx, c, msg); err != nil {
			c.SendError("handler_error", "Failed to process message", err.Error())
		}
	}
}

// changeSubscriptions answers with the channels actually affected.
func (c *Client) changeSubscriptions(msg *wstypes.WSMessage, subscribe bool) {
	var req wstypes.SubscribeRequest
	if err := msg.Bind(&req); err != nil {
		c.SendError("invalid_"+string(msg.Type), "Invalid "+string(msg.Type)+" request", err.Error())
		return
	}

	changed := make([]wstypes.ChannelType, 0, len(req.Channels))
	status := "unsubscribed"
	for _, ch := range req.Channels {
		if subscribe {
			if !c.Subscribe(ch) {
				continue
			}
		} else {
			c.Unsubscribe(ch)
		}
		changed = append(changed, ch)
	}
	if subscribe {
		status = "subscribed"
	}

	c.SendMessage(wstypes.NewMessage(msg.Type, map[string]interface{}{
		"channels": changed,
		"status":   status,
	}))
}

// SendMessage queues a message. A client whose buffer is full is dropped.
func (c *Client) SendMessage(msg *wstypes.WSMessage) {
	payload, err := msg.ToJSON()
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case <-c.ctx.Done():
	case c.send <- payload:
	default:
		c.Close()
		select {
		case c.hub.unregister <- c:
		default:
		}
	}
}

func (c *Client) SendError(code, message, details string) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close stops both pumps; repeated calls are no-ops.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}
