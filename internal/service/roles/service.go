package roles

import (
	"context"
	"fmt"
	"strings"

	"cpaas-console/internal/domain/role"
	xerrors "cpaas-console/internal/pkg/errors"

	"go.uber.org/zap"
)

// Backend owns the roles; the console only validates and forwards.
type Backend interface {
	ListRoles(ctx context.Context, token string) ([]role.Role, error)
	CreateRole(ctx context.Context, token string, r role.Role) (*role.Role, error)
	UpdateRole(ctx context.Context, token, id string, r role.Role) (*role.Role, error)
	DeleteRole(ctx context.Context, token, id string) error
}

type RoleService struct {
	backend Backend
	logger  *zap.Logger
}

func NewRoleService(backend Backend, logger *zap.Logger) *RoleService {
	return &RoleService{backend: backend, logger: logger}
}

func (s *RoleService) List(ctx context.Context, token string) ([]role.Role, error) {
	roles, err := s.backend.ListRoles(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (s *RoleService) Create(ctx context.Context, token string, req role.RoleRequest) (*role.Role, error) {
	r, err := req.Normalize()
	if err != nil {
		return nil, xerrors.Validation("%v", err)
	}

	created, err := s.backend.CreateRole(ctx, token, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	s.logger.Info("role created", zap.String("role", created.RoleName))
	return created, nil
}

func (s *RoleService) Update(ctx context.Context, token, id string, req role.RoleRequest) (*role.Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, xerrors.Validation("role id is required")
	}
	r, err := req.Normalize()
	if err != nil {
		return nil, xerrors.Validation("%v", err)
	}

	updated, err := s.backend.UpdateRole(ctx, token, id, r)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return updated, nil
}

func (s *RoleService) Delete(ctx context.Context, token, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return xerrors.Validation("role id is required")
	}
	if err := s.backend.DeleteRole(ctx, token, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	s.logger.Info("role deleted", zap.String("role_id", id))
	return nil
}
