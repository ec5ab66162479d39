package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRequestNormalize(t *testing.T) {
	r, err := RoleRequest{RoleName: "  support ", Permissions: []Permission{"read", "WRITE", "Read"}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "support", r.RoleName)
	assert.Equal(t, []Permission{PermissionRead, PermissionWrite}, r.Permissions)
}

func TestRoleRequestNormalizeRejects(t *testing.T) {
	_, err := RoleRequest{RoleName: " ", Permissions: []Permission{PermissionRead}}.Normalize()
	assert.Error(t, err)

	_, err = RoleRequest{RoleName: "x"}.Normalize()
	assert.Error(t, err)

	_, err = RoleRequest{RoleName: "x", Permissions: []Permission{"EXECUTE"}}.Normalize()
	assert.Error(t, err)
}
