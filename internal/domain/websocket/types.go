// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeError        EventType = "error"

	// Dispatch events (server -> client)
	EventTypeDispatchProgress  EventType = "dispatch:progress"
	EventTypeDispatchCompleted EventType = "dispatch:completed"

	// Activity requests (client -> server)
	EventTypeActivityList EventType = "activity:list"

	// Metrics
	EventTypeMetricsUpdate EventType = "metrics:update"

	// Session events
	EventTypeForceLogout EventType = "session:force_logout"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelDispatch ChannelType = "dispatch"
	ChannelMetrics  ChannelType = "metrics"
	ChannelSystem   ChannelType = "system"
)

// DefaultChannels are subscribed on connect.
var DefaultChannels = []ChannelType{ChannelDispatch, ChannelMetrics, ChannelSystem}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// DispatchProgressData is pushed after every finished delivery unit.
type DispatchProgressData struct {
	JobID     string `json:"job_id"`
	Channel   string `json:"channel"`
	Current   int    `json:"current"`
	Succeeded int    `json:"succeeded"`
	Total     int    `json:"total"`
}

// DispatchCompletedData closes a job on the dashboard.
type DispatchCompletedData struct {
	JobID          string `json:"job_id"`
	Channel        string `json:"channel"`
	Succeeded      int    `json:"succeeded"`
	Total          int    `json:"total"`
	LengthExceeded bool   `json:"length_exceeded"`
}

// SessionEventData for session events
type SessionEventData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Bind decodes the loosely typed Data payload into target.
func (m *WSMessage) Bind(target interface{}) error {
	if m.Data == nil {
		return nil
	}
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
