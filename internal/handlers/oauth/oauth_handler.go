// internal/handlers/oauth/oauth_handler.go
package oauth

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"cpaas-console/internal/domain/oauth"
	"cpaas-console/internal/pkg/response"
	oauthsvc "cpaas-console/internal/service/oauth"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

// MaxWait caps the long-poll of GET /oauth/flows/:id.
const MaxWait = 60 * time.Second

type Coordinator interface {
	Begin(ctx context.Context, provider oauth.Provider) (*oauth.BeginResponse, error)
	HandleCallback(ctx context.Context, provider oauth.Provider, sig oauth.RedirectSignal, meta oauthsvc.ClientMeta) (*oauth.FlowView, error)
	Signal(ctx context.Context, flowID string, sig oauth.Signal, meta oauthsvc.ClientMeta) (*oauth.FlowView, error)
	Get(flowID string) (*oauth.FlowView, error)
	Wait(ctx context.Context, flowID string) (*oauth.FlowView, error)
}

// BeginLimiter throttles flow creation per client IP.
type BeginLimiter interface {
	AllowOAuthBegin(ctx context.Context, ip string) error
}

type OAuthHandler struct {
	coordinator   Coordinator
	limiter       BeginLimiter
	allowedOrigin string
	logger        *zap.Logger
}

func NewOAuthHandler(coordinator Coordinator, limiter BeginLimiter, allowedOrigin string, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		coordinator:   coordinator,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func meta(c *gin.Context) oauthsvc.ClientMeta {
	return oauthsvc.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// ========== Begin ==========

func (h *OAuthHandler) Begin(c *gin.Context) {
	provider, err := oauth.ParseProvider(c.Param("provider"))
	if err != nil {
		response.ValidationError(c, "unsupported provider", err)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.AllowOAuthBegin(c.Request.Context(), c.ClientIP()); err != nil {
			response.FromError(c, "too many sign-in attempts", err)
			return
		}
	}

	begin, err := h.coordinator.Begin(c.Request.Context(), provider)
	if err != nil {
		h.logger.Error("failed to begin oauth flow",
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		response.FromError(c, "failed to begin sign-in", err)
		return
	}

	response.Success(c, http.StatusCreated, "sign-in started", begin)
}

// ========== Callback ==========

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in</title></head>
<body>
<p>{{if .Success}}Sign-in complete. You can close this window.{{else}}Sign-in failed: {{.Message.Error}}{{end}}</p>
<script>
(function () {
  var msg = {{.Message}};
  if (window.opener) {
    window.opener.postMessage(msg, {{.TargetOrigin}});
  }
  window.close();
})();
</script>
</body>
</html>`))

// callbackMessage is posted to the opener window.
type callbackMessage struct {
	Type   string `json:"type"`
	Error  string `json:"error,omitempty"`
	FlowID string `json:"flowId,omitempty"`
}

type callbackData struct {
	Success      bool
	Message      callbackMessage
	TargetOrigin string
}

// Callback is the redirect target handed to providers. It always renders the
// popup page, whatever the outcome.
func (h *OAuthHandler) Callback(c *gin.Context) {
	prefix := "OAUTH"
	provider, perr := oauth.ParseProvider(c.Query("provider"))
	if perr == nil {
		prefix = provider.MessagePrefix()
	}

	sig := oauth.RedirectSignal{
		State: c.Query("state"),
		Code:  c.Query("code"),
		Token: c.Query("token"),
		Error: c.Query("error"),
	}
	if sig.Error == "" {
		sig.Error = c.Query("error_description")
	}

	var (
		view *oauth.FlowView
		err  = perr
	)
	if err == nil {
		view, err = h.coordinator.HandleCallback(c.Request.Context(), provider, sig, meta(c))
	}

	data := callbackData{TargetOrigin: h.allowedOrigin}
	if data.TargetOrigin == "" {
		data.TargetOrigin = "*"
	}
	if view != nil {
		data.Message.FlowID = view.ID
	}

	status := http.StatusOK
	if err != nil {
		h.logger.Warn("oauth callback rejected",
			zap.String("provider", c.Query("provider")),
			zap.Error(err),
		)
		data.Message.Type = prefix + "_AUTH_ERROR"
		data.Message.Error = err.Error()
		status = response.StatusFor(err)
	} else {
		data.Success = true
		data.Message.Type = prefix + "_AUTH_SUCCESS"
	}

	c.Header("Cache-Control", "no-store")
	c.Render(status, render.HTML{Template: callbackPage, Data: data})
}

// ========== Flow signals & polling ==========

func (h *OAuthHandler) Signal(c *gin.Context) {
	var req oauth.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	view, err := h.coordinator.Signal(c.Request.Context(), c.Param("id"), req.ToSignal(), meta(c))
	if err != nil {
		response.FromError(c, "signal rejected", err, view)
		return
	}

	response.Success(c, http.StatusOK, "signal accepted", view)
}

// GetFlow returns a flow; with ?wait=<duration> it blocks until the flow is
// terminal or the wait elapses.
func (h *OAuthHandler) GetFlow(c *gin.Context) {
	flowID := c.Param("id")

	waitParam := c.Query("wait")
	if waitParam == "" {
		view, err := h.coordinator.Get(flowID)
		if err != nil {
			response.FromError(c, "flow not found", err)
			return
		}
		response.Success(c, http.StatusOK, "flow retrieved", view)
		return
	}

	wait, err := time.ParseDuration(waitParam)
	if err != nil || wait <= 0 {
		response.ValidationError(c, "invalid wait duration", err)
		return
	}
	if wait > MaxWait {
		wait = MaxWait
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	view, err := h.coordinator.Wait(ctx, flowID)
	if err != nil {
		response.FromError(c, "flow not found", err)
		return
	}
	response.Success(c, http.StatusOK, "flow retrieved", view)
}
