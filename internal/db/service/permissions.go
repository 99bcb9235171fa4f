package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/models"
	"github.com/campushub/attribute-registry/internal/db/schema"
)

// RoleEntityType is the entity type name permission attributes live under.
const RoleEntityType = "Role"

// RoleSource resolves the roles a user holds. The default implementation
// reads the user_roles join table; callers with their own membership store
// can inject anything.
type RoleSource interface {
	RolesForUser(ctx context.Context, userID int64) ([]int64, error)
}

// UserRoleStore is the join-table RoleSource.
type UserRoleStore struct {
	db *gorm.DB
}

// NewUserRoleStore creates the default role source.
func NewUserRoleStore(db *gorm.DB) *UserRoleStore {
	return &UserRoleStore{db: db}
}

// RolesForUser returns the role ids a user holds, oldest membership first.
func (s *UserRoleStore) RolesForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&schema.UserRole{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("role_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", userID, err)
	}
	return ids, nil
}

// Assign links a user to a role, ignoring duplicates.
func (s *UserRoleStore) Assign(ctx context.Context, userID, roleID int64) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		FirstOrCreate(&schema.UserRole{UserID: userID, RoleID: roleID}).Error
	if err != nil {
		return fmt.Errorf("assign role %d to user %d: %w", roleID, userID, err)
	}
	return nil
}

// PermissionService resolves one role's permission set and combines
// permissions across a user's roles with a type-directed merge. It is a
// pure consumer of the value store's read path: default substitution
// happens per role, never at aggregation time.
type PermissionService struct {
	values *ValueStore
	roles  RoleSource
	// prefix narrows which Role definitions count as permissions; empty
	// means all active Role definitions.
	prefix string
}

// NewPermissionService creates the aggregator.
func NewPermissionService(values *ValueStore, roles RoleSource, prefix string) *PermissionService {
	return &PermissionService{values: values, roles: roles, prefix: prefix}
}

// Permissions resolves one role's full permission set: the stored value
// where present, else the definition's parsed default.
func (p *PermissionService) Permissions(ctx context.Context, roleID int64) (map[string]any, error) {
	defs, err := p.values.registry.DefinitionsFor(RoleEntityType, DefinitionQuery{Prefix: p.prefix, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	stored, err := p.values.GetAttributes(ctx, RoleEntityType, roleID, GetQuery{Prefix: p.prefix})
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(defs))
	for _, def := range defs {
		if v, ok := stored[def.Name]; ok && v != nil {
			out[def.Name] = v
			continue
		}
		dv, err := models.ParseDefault(def.DefaultValue, models.ValueType(def.ValueType))
		if err != nil {
			return nil, fmt.Errorf("default for %q: %w", def.Name, err)
		}
		out[def.Name] = dv
	}
	return out, nil
}

// AggregatedPermissions merges permissions across roles, in role order:
// boolean OR, numeric maximum, json array union / shallow object merge,
// first non-empty value for strings and everything else.
func (p *PermissionService) AggregatedPermissions(ctx context.Context, roleIDs []int64) (map[string]any, error) {
	defs, err := p.values.registry.DefinitionsFor(RoleEntityType, DefinitionQuery{Prefix: p.prefix, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	typeByName := make(map[string]models.ValueType, len(defs))
	for _, def := range defs {
		typeByName[def.Name] = models.ValueType(def.ValueType)
	}

	merged := map[string]any{}
	for _, roleID := range roleIDs {
		perms, err := p.Permissions(ctx, roleID)
		if err != nil {
			return nil, err
		}
		for name, value := range perms {
			current, seen := merged[name]
			if !seen {
				merged[name] = value
				continue
			}
			merged[name] = mergeValues(current, value, typeByName[name])
		}
	}
	return merged, nil
}

// UserHasPermission reports whether any of the user's roles resolves the
// named permission to boolean true, short-circuiting on the first match.
func (p *PermissionService) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	roleIDs, err := p.roles.RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, roleID := range roleIDs {
		perms, err := p.Permissions(ctx, roleID)
		if err != nil {
			return false, err
		}
		if b, ok := perms[name].(bool); ok && b {
			return true, nil
		}
	}
	return false, nil
}

// mergeValues combines two per-role values for one permission attribute.
// nil loses to anything.
func mergeValues(a, b any, t models.ValueType) any {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	switch t {
	case models.ValueTypeBoolean:
		ab, aok := a.(bool)
		bb, bok := b.(bool)
		if aok && bok {
			return ab || bb
		}
	case models.ValueTypeInteger:
		ai, aok := a.(int64)
		bi, bok := b.(int64)
		if aok && bok {
			if bi > ai {
				return bi
			}
			return ai
		}
	case models.ValueTypeDecimal:
		af, aok := a.(float64)
		bf, bok := b.(float64)
		if aok && bok {
			if bf > af {
				return bf
			}
			return af
		}
	case models.ValueTypeJSON:
		if al, aok := a.([]any); aok {
			if bl, bok := b.([]any); bok {
				return unionSlices(al, bl)
			}
		}
		if am, aok := a.(map[string]any); aok {
			if bm, bok := b.(map[string]any); bok {
				out := make(map[string]any, len(am)+len(bm))
				for k, v := range am {
					out[k] = v
				}
				for k, v := range bm {
					if _, exists := out[k]; !exists {
						out[k] = v
					}
				}
				return out
			}
		}
	}

	// Strings and mixed shapes: first non-empty value in role order wins.
	if s, ok := a.(string); ok && s == "" {
		return b
	}
	return a
}

// unionSlices appends the elements of b not already present in a,
// preserving order. Elements are compared by their JSON-decoded forms.
func unionSlices(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	for _, bv := range b {
		found := false
		for _, av := range out {
			if fmt.Sprint(av) == fmt.Sprint(bv) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, bv)
		}
	}
	return out
}
