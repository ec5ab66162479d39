// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "cpaas-console/internal/domain/websocket"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/session"

	"go.uber.org/zap"
)

// TokenValidator checks a console token and returns its live session.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error)

func (f ValidatorFunc) ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
	return f(ctx, token)
}

type Hub struct {
	// Registered clients by operator ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	validator TokenValidator
	logger    *zap.Logger
}

type BroadcastMessage struct {
	// OperatorIDs nil means everyone.
	OperatorIDs []string
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(validator TokenValidator, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client, 64),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		validator:       validator,
		logger:          logger,
	}
}

// AuthenticateClient validates the console token of a connecting client.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, sess, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	auth := &ClientAuth{
		OperatorID: claims.OperatorID,
		SessionID:  claims.ID,
		Provider:   claims.Provider,
	}
	if sess.Profile != nil {
		auth.Email = sess.Profile.Email
	}
	return auth, nil
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error {
	handler, exists := h.handlerRegistry.Lookup(msg.Type)
	if !exists {
		return nil // built-in events are handled by the client
	}
	return handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.auth.OperatorID] == nil {
		h.clients[client.auth.OperatorID] = make(map[*Client]bool)
	}
	h.clients[client.auth.OperatorID][client] = true

	for _, ch := range wstypes.DefaultChannels {
		client.Subscribe(ch)
	}

	h.logger.Info("websocket client connected",
		zap.String("operator_id", client.auth.OperatorID),
		zap.String("session_id", client.auth.SessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"operator_id": client.auth.OperatorID,
		"session_id":  client.auth.SessionID,
		"channels":    wstypes.DefaultChannels,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.auth.OperatorID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.auth.OperatorID)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("operator_id", client.auth.OperatorID),
				zap.String("session_id", client.auth.SessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.OperatorIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, operatorID := range msg.OperatorIDs {
		for client := range h.clients[operatorID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// enqueue never blocks the caller; a full queue drops the event.
func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) GetConnectedClients(operatorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[operatorID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// ==================== Console events ====================

func (h *Hub) BroadcastDispatchProgress(operatorID string, data wstypes.DispatchProgressData) {
	h.enqueue(&BroadcastMessage{
		OperatorIDs: []string{operatorID},
		Channel:     wstypes.ChannelDispatch,
		Message:     wstypes.NewMessage(wstypes.EventTypeDispatchProgress, data),
	})
}

// BroadcastDispatchCompleted also hints the dashboard to refresh its metrics.
func (h *Hub) BroadcastDispatchCompleted(operatorID string, data wstypes.DispatchCompletedData) {
	h.enqueue(&BroadcastMessage{
		OperatorIDs: []string{operatorID},
		Channel:     wstypes.ChannelDispatch,
		Message:     wstypes.NewMessage(wstypes.EventTypeDispatchCompleted, data),
	})
	h.BroadcastMetricsUpdate(operatorID, "dispatch_completed")
}

func (h *Hub) BroadcastMetricsUpdate(operatorID, reason string) {
	h.enqueue(&BroadcastMessage{
		OperatorIDs: []string{operatorID},
		Channel:     wstypes.ChannelMetrics,
		Message: wstypes.NewMessage(wstypes.EventTypeMetricsUpdate, map[string]interface{}{
			"reason": reason,
		}),
	})
}

func (h *Hub) ForceLogout(operatorID, sessionID, reason string) {
	h.enqueue(&BroadcastMessage{
		OperatorIDs: []string{operatorID},
		Channel:     wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
			SessionID: sessionID,
			Reason:    reason,
			Message:   "You have been logged out",
		}),
	})
}

// IsOperatorConnected checks if an operator has any active connections
func (h *Hub) IsOperatorConnected(operatorID string) bool {
	return h.GetConnectedClients(operatorID) > 0
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
