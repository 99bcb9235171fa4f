package domains

import (
	"context"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// InstructorEntityType is the entity type name instructor attributes live
// under.
const InstructorEntityType = "Instructor"

// AwardGroup declares the award family on instructors: title and year
// attributes grouped per award.
var AwardGroup = service.GroupSpec{
	Prefix:         "award_",
	GroupAttribute: "award_group_id",
}

// InstructorService manages instructor attributes and the awards list.
type InstructorService struct {
	values  *service.ValueStore
	grouped *service.GroupedStore
}

// NewInstructorService creates the instructor facade.
func NewInstructorService(values *service.ValueStore, grouped *service.GroupedStore) *InstructorService {
	return &InstructorService{values: values, grouped: grouped}
}

// Awards lists an instructor's awards.
func (s *InstructorService) Awards(ctx context.Context, instructorID int64) ([]service.GroupedItem, error) {
	return s.grouped.Items(ctx, InstructorEntityType, instructorID, AwardGroup)
}

// AddAward records one award with a title and year.
func (s *InstructorService) AddAward(ctx context.Context, instructorID int64, title string, year int, opts service.SetOptions) (service.GroupedItem, error) {
	return s.grouped.AddItem(ctx, InstructorEntityType, instructorID, AwardGroup, map[string]any{
		"award_title": title,
		"award_year":  year,
	}, opts)
}

// RemoveAward deletes one award.
func (s *InstructorService) RemoveAward(ctx context.Context, instructorID int64, itemID string, opts service.DeleteOptions) (int64, error) {
	return s.grouped.DeleteItem(ctx, InstructorEntityType, instructorID, AwardGroup, itemID, opts)
}

// Attributes exposes the full attribute read path for one instructor.
func (s *InstructorService) Attributes(ctx context.Context, instructorID int64, q service.GetQuery) (map[string]any, error) {
	return s.values.GetAttributes(ctx, InstructorEntityType, instructorID, q)
}
