// internal/handlers/secrets/secrets_handler.go
package secrets

import (
	"context"
	"net/http"

	"cpaas-console/internal/domain/secrets"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Service interface {
	Get(ctx context.Context, operatorID string) (*secrets.StoredBundle, error)
	Put(ctx context.Context, operatorID string, bundle secrets.Bundle) (*secrets.StoredBundle, error)
	Clear(ctx context.Context, operatorID string) error
}

type SecretsHandler struct {
	secretService Service
}

func NewSecretsHandler(secretService Service) *SecretsHandler {
	return &SecretsHandler{secretService: secretService}
}

func (h *SecretsHandler) Get(c *gin.Context) {
	bundle, err := h.secretService.Get(c.Request.Context(), middleware.MustGetOperatorID(c))
	if err != nil {
		response.FromError(c, "failed to load secrets", err)
		return
	}
	response.Success(c, http.StatusOK, "secrets retrieved", bundle)
}

// Put replaces the whole bundle.
func (h *SecretsHandler) Put(c *gin.Context) {
	var req secrets.PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	bundle, err := h.secretService.Put(c.Request.Context(), middleware.MustGetOperatorID(c), req.Secrets)
	if err != nil {
		response.FromError(c, "failed to save secrets", err)
		return
	}
	response.Success(c, http.StatusOK, "secrets saved", bundle)
}

func (h *SecretsHandler) Clear(c *gin.Context) {
	if err := h.secretService.Clear(c.Request.Context(), middleware.MustGetOperatorID(c)); err != nil {
		response.FromError(c, "failed to clear secrets", err)
		return
	}
	response.Success(c, http.StatusOK, "secrets cleared", nil)
}
