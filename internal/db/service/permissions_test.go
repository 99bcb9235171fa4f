package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPermissionFixture(t *testing.T) (*PermissionService, *UserRoleStore, *ValueStore) {
	t.Helper()
	db, values := newTestEngine(t)
	roles := NewUserRoleStore(db)
	return NewPermissionService(values, roles, "can_"), roles, values
}

func TestPermissionsSubstitutesDefaults(t *testing.T) {
	perms, _, values := newPermissionFixture(t)
	ctx := context.Background()

	// Nothing stored: everything comes from definition defaults.
	got, err := perms.Permissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, false, got["can_grade_assignments"])
	assert.Equal(t, false, got["can_manage_users"])
	assert.Equal(t, int64(2), got["can_max_course_load"])
	assert.Nil(t, got["can_access_buildings"])
	// office_location is outside the permission prefix.
	assert.NotContains(t, got, "office_location")

	// A stored value overrides its default.
	_, err = values.SetAttribute(ctx, RoleEntityType, 1, "can_grade_assignments", true, SetOptions{})
	require.NoError(t, err)

	got, err = perms.Permissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, true, got["can_grade_assignments"])
	assert.Equal(t, false, got["can_manage_users"])
}

func TestAggregatedPermissionsBooleanOr(t *testing.T) {
	perms, _, values := newPermissionFixture(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, RoleEntityType, 1, "can_grade_assignments", true, SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_grade_assignments", false, SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_manage_users", true, SetOptions{})
	require.NoError(t, err)

	got, err := perms.AggregatedPermissions(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, true, got["can_grade_assignments"], "any granting role wins")
	assert.Equal(t, true, got["can_manage_users"])

	// Boolean OR is order-independent.
	reversed, err := perms.AggregatedPermissions(ctx, []int64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, got["can_grade_assignments"], reversed["can_grade_assignments"])
	assert.Equal(t, got["can_manage_users"], reversed["can_manage_users"])
}

func TestAggregatedPermissionsNumericMax(t *testing.T) {
	perms, _, values := newPermissionFixture(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, RoleEntityType, 1, "can_max_course_load", 3, SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_max_course_load", 5, SetOptions{})
	require.NoError(t, err)

	got, err := perms.AggregatedPermissions(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got["can_max_course_load"])

	reversed, err := perms.AggregatedPermissions(ctx, []int64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), reversed["can_max_course_load"])

	// A role relying on the default (2) never lowers another role's grant.
	got, err = perms.AggregatedPermissions(ctx, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got["can_max_course_load"])
}

func TestAggregatedPermissionsJSONUnion(t *testing.T) {
	perms, _, values := newPermissionFixture(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, RoleEntityType, 1, "can_access_buildings", []any{"library", "labs"}, SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_access_buildings", []any{"labs", "gym"}, SetOptions{})
	require.NoError(t, err)

	got, err := perms.AggregatedPermissions(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"library", "labs", "gym"}, got["can_access_buildings"])
}

func TestAggregatedPermissionsStringFirstNonEmpty(t *testing.T) {
	perms, _, values := newPermissionFixture(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, RoleEntityType, 1, "can_report_scope", "", SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_report_scope", "department", SetOptions{})
	require.NoError(t, err)

	got, err := perms.AggregatedPermissions(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "department", got["can_report_scope"])
}

func TestUserHasPermission(t *testing.T) {
	perms, roles, values := newPermissionFixture(t)
	ctx := context.Background()

	require.NoError(t, roles.Assign(ctx, 10, 1))
	require.NoError(t, roles.Assign(ctx, 10, 2))
	// Duplicate assignment is ignored.
	require.NoError(t, roles.Assign(ctx, 10, 2))

	ids, err := roles.RolesForUser(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	granted, err := perms.UserHasPermission(ctx, 10, "can_grade_assignments")
	require.NoError(t, err)
	assert.False(t, granted, "defaults deny")

	_, err = values.SetAttribute(ctx, RoleEntityType, 2, "can_grade_assignments", true, SetOptions{})
	require.NoError(t, err)

	granted, err = perms.UserHasPermission(ctx, 10, "can_grade_assignments")
	require.NoError(t, err)
	assert.True(t, granted)

	// Users with no roles hold no permissions.
	granted, err = perms.UserHasPermission(ctx, 11, "can_grade_assignments")
	require.NoError(t, err)
	assert.False(t, granted)
}
