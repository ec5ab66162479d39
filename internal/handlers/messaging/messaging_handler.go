// internal/handlers/messaging/messaging_handler.go
package messaging

import (
	"context"
	"fmt"
	"net/http"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"
	msgsvc "cpaas-console/internal/service/messaging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxCSVSize bounds the uploaded recipients file.
const MaxCSVSize = 5 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, caller msgsvc.Caller, req messaging.BulkSendRequest) (*messaging.BulkResult, error)
}

type MessagingHandler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewMessagingHandler(dispatcher Dispatcher, logger *zap.Logger) *MessagingHandler {
	return &MessagingHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func caller(c *gin.Context) msgsvc.Caller {
	token, _ := middleware.GetBackendToken(c)
	return msgsvc.Caller{
		OperatorID:   middleware.MustGetOperatorID(c),
		BackendToken: token,
	}
}

// Send delivers one message to a single recipient.
func (h *MessagingHandler) Send(c *gin.Context) {
	var req messaging.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	h.dispatch(c, req.ToBulk(), nil)
}

// Bulk delivers one message to every recipient in the JSON body.
func (h *MessagingHandler) Bulk(c *gin.Context) {
	var req messaging.BulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	h.dispatch(c, req, nil)
}

// BulkCSV reads recipients from an uploaded "name,contact" file.
func (h *MessagingHandler) BulkCSV(c *gin.Context) {
	channel, err := messaging.ParseChannel(c.PostForm("channel"))
	if err != nil {
		response.ValidationError(c, "invalid channel", err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, "recipients file is required", err)
		return
	}
	if fh.Size > MaxCSVSize {
		response.ValidationError(c, "recipients file is too large", nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.ValidationError(c, "failed to open recipients file", err)
		return
	}
	defer f.Close()

	imported, err := messaging.ParseRecipientsCSV(f, channel)
	if err != nil {
		response.ValidationError(c, "invalid recipients file", err)
		return
	}

	req := messaging.BulkSendRequest{
		Channel:     channel,
		Message:     c.PostForm("message"),
		Subject:     c.PostForm("subject"),
		Recipients:  imported.Recipients,
		AccessToken: c.PostForm("accessToken"),
		PageID:      c.PostForm("pageId"),
		MediaURL:    c.PostForm("mediaUrl"),
		MediaType:   c.PostForm("mediaType"),
	}

	var warnings []string
	if imported.Skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows skipped: contact is not valid for %s", imported.Skipped, channel))
	}
	h.dispatch(c, req, warnings)
}

func (h *MessagingHandler) dispatch(c *gin.Context, req messaging.BulkSendRequest, warnings []string) {
	who := caller(c)

	res, err := h.dispatcher.Dispatch(c.Request.Context(), who, req)
	if err != nil {
		h.logger.Warn("dispatch rejected",
			zap.String("operator_id", who.OperatorID),
			zap.String("channel", string(req.Channel)),
			zap.Error(err),
		)
		response.FromError(c, "send rejected", err)
		return
	}
	res.Warnings = append(res.Warnings, warnings...)

	response.Success(c, http.StatusOK, fmt.Sprintf("sent %d of %d", res.Succeeded, res.Total), res)
}
