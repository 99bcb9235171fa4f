package domains

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campushub/attribute-registry/internal/db/service"
)

func newTestValues(t *testing.T) *service.ValueStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	specs := []service.EntityTypeSpec{
		{
			Name:  UserEntityType,
			Table: "users",
			Attributes: []service.AttributeSpec{
				{Name: "student_gpa", ValueType: "decimal", SortOrder: 1},
				{Name: "student_major", ValueType: "string", SortOrder: 2},
				{Name: "common_phone_number", ValueType: "string", SortOrder: 3},
			},
		},
		{
			Name:  InstructorEntityType,
			Table: "instructors",
			Attributes: []service.AttributeSpec{
				{Name: "award_group_id", ValueType: "string", SortOrder: 1},
				{Name: "award_title", ValueType: "string", SortOrder: 2},
				{Name: "award_year", ValueType: "integer", SortOrder: 3},
			},
		},
		{
			Name:  AssessmentEntityType,
			Table: "assessments",
			Attributes: []service.AttributeSpec{
				{Name: "rubric_url", ValueType: "string", SortOrder: 1},
			},
		},
	}
	require.NoError(t, service.NewProvisioner(db, nil).Apply(specs))

	registry := service.NewDefinitionRegistry(db, time.Minute, 0)
	return service.NewValueStore(db, registry, service.NewAuditTrail(db, nil))
}

func TestUserProfileFieldMapping(t *testing.T) {
	values := newTestValues(t)
	users := NewUserService(values)
	ctx := context.Background()

	err := users.UpdateProfile(ctx, 7, map[string]any{
		"gpa":   3.75,
		"major": "Computer Science",
		"phone": "555-0100",
	}, service.SetOptions{})
	require.NoError(t, err)

	profile, err := users.Profile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3.75, profile["gpa"])
	assert.Equal(t, "Computer Science", profile["major"])
	assert.Equal(t, "555-0100", profile["phone"])

	// The stored attributes carry the mapped names.
	attrs, err := users.Attributes(ctx, 7, service.GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3.75, attrs["student_gpa"])
	assert.Equal(t, "555-0100", attrs["common_phone_number"])

	err = users.UpdateProfile(ctx, 7, map[string]any{"shoe_size": 42}, service.SetOptions{})
	var validationErr *service.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestInstructorAwards(t *testing.T) {
	values := newTestValues(t)
	instructors := NewInstructorService(values, service.NewGroupedStore(values))
	ctx := context.Background()

	first, err := instructors.AddAward(ctx, 12, "Teaching Excellence", 2023, service.SetOptions{})
	require.NoError(t, err)
	_, err = instructors.AddAward(ctx, 12, "Research Grant", 2025, service.SetOptions{})
	require.NoError(t, err)

	awards, err := instructors.Awards(ctx, 12)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, "Teaching Excellence", awards[0].Fields["award_title"])
	assert.Equal(t, int64(2023), awards[0].Fields["award_year"])

	count, err := instructors.RemoveAward(ctx, 12, first.ID, service.DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	awards, err = instructors.Awards(ctx, 12)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Research Grant", awards[0].Fields["award_title"])
}

func TestAssessmentMetadata(t *testing.T) {
	values := newTestValues(t)
	assessments := NewAssessmentService(values)
	ctx := context.Background()

	_, err := assessments.SetMetadata(ctx, 5, "rubric_url", "https://example.edu/rubrics/5", service.SetOptions{})
	require.NoError(t, err)

	meta, err := assessments.Metadata(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "https://example.edu/rubrics/5", meta["rubric_url"])

	count, err := assessments.ClearMetadata(ctx, 5, "rubric_url", service.DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	meta, err = assessments.Metadata(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, meta)
}
