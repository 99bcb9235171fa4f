// Package domains provides thin, named facades over the attribute engine
// for the university entity kinds. Each facade pins its entity type name
// and maps friendly field names onto stored attribute names, so callers
// never handle raw attribute identifiers.
package domains

import (
	"context"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// UserEntityType is the entity type name user attributes live under.
const UserEntityType = "User"

// User profile fields and the attributes backing them.
var userProfileFields = map[string]string{
	"gpa":   "student_gpa",
	"major": "student_major",
	"phone": "common_phone_number",
}

// UserService reads and writes user profile attributes.
type UserService struct {
	values *service.ValueStore
}

// NewUserService creates the user facade.
func NewUserService(values *service.ValueStore) *UserService {
	return &UserService{values: values}
}

// Profile returns the user's profile fields. Fields without a stored value
// are absent from the result.
func (s *UserService) Profile(ctx context.Context, userID int64) (map[string]any, error) {
	names := make([]string, 0, len(userProfileFields))
	for _, attr := range userProfileFields {
		names = append(names, attr)
	}
	stored, err := s.values.GetAttributes(ctx, UserEntityType, userID, service.GetQuery{Names: names})
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(stored))
	for field, attr := range userProfileFields {
		if v, ok := stored[attr]; ok {
			out[field] = v
		}
	}
	return out, nil
}

// UpdateProfile writes the given profile fields in one transaction. Unknown
// field names are rejected before anything is written.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, fields map[string]any, opts service.SetOptions) error {
	values := make(map[string]any, len(fields))
	for field, v := range fields {
		attr, ok := userProfileFields[field]
		if !ok {
			return &service.ValidationError{Attribute: field, Reason: "unknown profile field"}
		}
		values[attr] = v
	}
	_, err := s.values.BulkSetAttributes(ctx, UserEntityType, userID, values, opts)
	return err
}

// Attributes exposes the full attribute read path for one user, for callers
// that need more than the profile fields.
func (s *UserService) Attributes(ctx context.Context, userID int64, q service.GetQuery) (map[string]any, error) {
	return s.values.GetAttributes(ctx, UserEntityType, userID, q)
}
