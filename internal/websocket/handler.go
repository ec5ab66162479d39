// internal/websocket/handler.go
package websocket

import (
	"context"
	"sync"

	wstypes "cpaas-console/internal/domain/websocket"
)

// MessageHandler serves client-originated events that the hub does not
// answer itself.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry routes an event type to the handler that claimed it.
// A later registration for the same event replaces the earlier one.
type HandlerRegistry struct {
	mu     sync.RWMutex
	routes map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{routes: make(map[wstypes.EventType]MessageHandler)}
}

func (r *HandlerRegistry) Register(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range handler.SupportedEvents() {
		r.routes[ev] = handler
	}
}

func (r *HandlerRegistry) Lookup(ev wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.routes[ev]
	return handler, ok
}
