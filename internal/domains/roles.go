package domains

import (
	"context"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// RoleService manages role permission attributes and answers permission
// questions for users.
type RoleService struct {
	values      *service.ValueStore
	permissions *service.PermissionService
	members     *service.UserRoleStore
}

// NewRoleService creates the role facade.
func NewRoleService(values *service.ValueStore, permissions *service.PermissionService, members *service.UserRoleStore) *RoleService {
	return &RoleService{values: values, permissions: permissions, members: members}
}

// SetPermission writes one permission attribute on a role.
func (s *RoleService) SetPermission(ctx context.Context, roleID int64, name string, value any, opts service.SetOptions) (service.SetResult, error) {
	return s.values.SetAttribute(ctx, service.RoleEntityType, roleID, name, value, opts)
}

// Permissions resolves one role's effective permission set, defaults
// included.
func (s *RoleService) Permissions(ctx context.Context, roleID int64) (map[string]any, error) {
	return s.permissions.Permissions(ctx, roleID)
}

// EffectivePermissions merges permissions across all of a user's roles.
func (s *RoleService) EffectivePermissions(ctx context.Context, userID int64) (map[string]any, error) {
	roleIDs, err := s.members.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.permissions.AggregatedPermissions(ctx, roleIDs)
}

// UserHasPermission reports whether any of the user's roles grants the
// named boolean permission.
func (s *RoleService) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	return s.permissions.UserHasPermission(ctx, userID, name)
}

// AssignRole links a user to a role.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.members.Assign(ctx, userID, roleID)
}
