package domains

import (
	"context"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// AssessmentEntityType is the entity type name assessment metadata lives
// under.
const AssessmentEntityType = "Assessment"

// AssessmentService manages free-form grading metadata on assessments:
// rubric references, late policies, grading scales.
type AssessmentService struct {
	values *service.ValueStore
}

// NewAssessmentService creates the assessment facade.
func NewAssessmentService(values *service.ValueStore) *AssessmentService {
	return &AssessmentService{values: values}
}

// Metadata returns all stored metadata attributes of one assessment.
func (s *AssessmentService) Metadata(ctx context.Context, assessmentID int64) (map[string]any, error) {
	return s.values.GetAttributes(ctx, AssessmentEntityType, assessmentID, service.GetQuery{})
}

// SetMetadata writes one metadata attribute.
func (s *AssessmentService) SetMetadata(ctx context.Context, assessmentID int64, name string, value any, opts service.SetOptions) (service.SetResult, error) {
	return s.values.SetAttribute(ctx, AssessmentEntityType, assessmentID, name, value, opts)
}

// UpdateMetadata writes several metadata attributes in one transaction.
func (s *AssessmentService) UpdateMetadata(ctx context.Context, assessmentID int64, values map[string]any, opts service.SetOptions) (map[string]service.SetResult, error) {
	return s.values.BulkSetAttributes(ctx, AssessmentEntityType, assessmentID, values, opts)
}

// ClearMetadata soft-deletes one metadata attribute.
func (s *AssessmentService) ClearMetadata(ctx context.Context, assessmentID int64, name string, opts service.DeleteOptions) (int64, error) {
	return s.values.DeleteAttribute(ctx, AssessmentEntityType, assessmentID, name, opts)
}
