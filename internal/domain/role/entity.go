// internal/domain/role/entity.go
package role

import (
	"fmt"
	"strings"
)

type Permission string

const (
	PermissionRead   Permission = "READ"
	PermissionWrite  Permission = "WRITE"
	PermissionDelete Permission = "DELETE"
	PermissionAdmin  Permission = "ADMIN"
)

var knownPermissions = map[Permission]bool{
	PermissionRead:   true,
	PermissionWrite:  true,
	PermissionDelete: true,
	PermissionAdmin:  true,
}

// Role is an API role owned by the auth backend.
type Role struct {
	ID          string       `json:"id,omitempty"`
	RoleName    string       `json:"roleName"`
	Permissions []Permission `json:"permissions"`
}

// RoleRequest creates or updates a role.
type RoleRequest struct {
	RoleName    string       `json:"roleName" binding:"required"`
	Permissions []Permission `json:"permissions" binding:"required"`
}

// Normalize trims the name, upper-cases permissions and drops duplicates.
func (r RoleRequest) Normalize() (Role, error) {
	name := strings.TrimSpace(r.RoleName)
	if name == "" {
		return Role{}, fmt.Errorf("role name is required")
	}
	if len(r.Permissions) == 0 {
		return Role{}, fmt.Errorf("at least one permission is required")
	}

	seen := make(map[Permission]bool, len(r.Permissions))
	perms := make([]Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		p = Permission(strings.ToUpper(strings.TrimSpace(string(p))))
		if !knownPermissions[p] {
			return Role{}, fmt.Errorf("unknown permission %q", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		perms = append(perms, p)
	}
	return Role{RoleName: name, Permissions: perms}, nil
}
