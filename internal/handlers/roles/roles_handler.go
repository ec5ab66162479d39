// internal/handlers/roles/roles_handler.go
package roles

import (
	"context"
	"net/http"

	"cpaas-console/internal/domain/role"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	List(ctx context.Context, token string) ([]role.Role, error)
	Create(ctx context.Context, token string, req role.RoleRequest) (*role.Role, error)
	Update(ctx context.Context, token, id string, req role.RoleRequest) (*role.Role, error)
	Delete(ctx context.Context, token, id string) error
}

type RoleHandler struct {
	roleService Service
	logger      *zap.Logger
}

func NewRoleHandler(roleService Service, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{roleService: roleService, logger: logger}
}

func backendToken(c *gin.Context) string {
	token, _ := middleware.GetBackendToken(c)
	return token
}

func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roleService.List(c.Request.Context(), backendToken(c))
	if err != nil {
		response.FromError(c, "failed to list roles", err)
		return
	}
	response.Success(c, http.StatusOK, "roles retrieved", gin.H{
		"roles": roles,
		"count": len(roles),
	})
}

func (h *RoleHandler) Create(c *gin.Context) {
	var req role.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	created, err := h.roleService.Create(c.Request.Context(), backendToken(c), req)
	if err != nil {
		response.FromError(c, "failed to create role", err)
		return
	}

	h.logger.Info("role created",
		zap.String("operator_id", middleware.MustGetOperatorID(c)),
		zap.String("role", created.RoleName),
	)
	response.Success(c, http.StatusCreated, "role created", created)
}

func (h *RoleHandler) Update(c *gin.Context) {
	var req role.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	updated, err := h.roleService.Update(c.Request.Context(), backendToken(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, "failed to update role", err)
		return
	}
	response.Success(c, http.StatusOK, "role updated", updated)
}

func (h *RoleHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.roleService.Delete(c.Request.Context(), backendToken(c), id); err != nil {
		response.FromError(c, "failed to delete role", err)
		return
	}

	h.logger.Info("role deleted",
		zap.String("operator_id", middleware.MustGetOperatorID(c)),
		zap.String("role_id", id),
	)
	response.Success(c, http.StatusOK, "role deleted", nil)
}
