// internal/websocket/handler/activity.go
package handlers

import (
	"context"
	"fmt"

	"cpaas-console/internal/domain/messaging"
	wstypes "cpaas-console/internal/domain/websocket"
	ws "cpaas-console/internal/websocket"
)

// ActivityLister reads the recent dispatch jobs of an operator.
type ActivityLister interface {
	Activity(ctx context.Context, operatorID string, limit int) ([]*messaging.DispatchJob, error)
}

type ActivityHandler struct {
	activity ActivityLister
}

func NewActivityHandler(activity ActivityLister) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// SupportedEvents returns events this handler supports
func (h *ActivityHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeActivityList}
}

func (h *ActivityHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeActivityList:
		return h.handleList(ctx, client, msg)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *ActivityHandler) handleList(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := msg.Bind(&req); err != nil {
		client.SendError("invalid_request", "Invalid activity request", err.Error())
		return nil
	}

	jobs, err := h.activity.Activity(ctx, client.GetOperatorID(), req.Limit)
	if err != nil {
		client.SendError("activity_failed", "Failed to load activity", err.Error())
		return nil
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeActivityList, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}))
	return nil
}
