package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

func TestSetAttributeCreateAndRead(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	res, err := values.SetAttribute(ctx, "User", 7, "student_gpa", 3.75, SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.NotZero(t, res.ID)

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3.75, attrs["student_gpa"])

	// Another user's attributes are untouched.
	attrs, err = values.GetAttributes(ctx, "User", 8, GetQuery{})
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestSetAttributeUpsertIsIdempotent(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	first, err := values.SetAttribute(ctx, "User", 7, "student_major", "Mathematics", SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, first.Action)

	second, err := values.SetAttribute(ctx, "User", 7, "student_major", "Computer Science", SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.ID, second.ID)

	// Exactly one physical row, holding the latest value.
	var count int64
	require.NoError(t, db.Model(&schema.AttributeValue{}).
		Where("entity_type = ? AND entity_id = ?", "User", 7).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", attrs["student_major"])

	// One create entry and one update entry carrying the old value.
	var entries []schema.AttributeAuditEntry
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", "User", 7).
		Order("created_at ASC, action ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, schema.AuditActionCreate, entries[0].Action)
	assert.Nil(t, entries[0].OldValue)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, "Mathematics", *entries[0].NewValue)
	assert.Equal(t, schema.AuditActionUpdate, entries[1].Action)
	require.NotNil(t, entries[1].OldValue)
	assert.Equal(t, "Mathematics", *entries[1].OldValue)
	require.NotNil(t, entries[1].NewValue)
	assert.Equal(t, "Computer Science", *entries[1].NewValue)
}

func TestSetAttributeSameValueAuditsEqualOldAndNew(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "student_gpa", 3.5, SetOptions{})
	require.NoError(t, err)
	_, err = values.SetAttribute(ctx, "User", 7, "student_gpa", 3.5, SetOptions{})
	require.NoError(t, err)

	var entries []schema.AttributeAuditEntry
	require.NoError(t, db.Where("action = ?", schema.AuditActionUpdate).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].OldValue)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, *entries[0].OldValue, *entries[0].NewValue)
}

func TestSetAttributeRejectsUnknownName(t *testing.T) {
	_, values := newTestEngine(t)

	_, err := values.SetAttribute(context.Background(), "User", 7, "shoe_size", 42, SetOptions{})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "shoe_size", schemaErr.Attribute)
}

func TestSetAttributeRequiredRejectsEmpty(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	for _, empty := range []any{nil, ""} {
		_, err := values.SetAttribute(ctx, "User", 7, "legal_name", empty, SetOptions{})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	}

	// Nothing was written, not even audit entries.
	var count int64
	require.NoError(t, db.Model(&schema.AttributeValue{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&schema.AttributeAuditEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSetAttributeInvalidValueRejected(t *testing.T) {
	_, values := newTestEngine(t)

	_, err := values.SetAttribute(context.Background(), "User", 7, "student_gpa", "excellent", SetOptions{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "student_gpa", validationErr.Attribute)
}

func TestBulkSetAttributes(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "common_phone_number", "555-0100", SetOptions{})
	require.NoError(t, err)

	results, err := values.BulkSetAttributes(ctx, "User", 7, map[string]any{
		"student_gpa":   4.0,
		"student_major": "Computer Science",
	}, SetOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ActionCreated, results["student_gpa"].Action)
	assert.Equal(t, ActionCreated, results["student_major"].Action)

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, attrs["student_gpa"])
	assert.Equal(t, "Computer Science", attrs["student_major"])
	assert.Equal(t, "555-0100", attrs["common_phone_number"], "untouched attributes keep their values")
}

func TestBulkSetAttributesAllOrNothing(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.BulkSetAttributes(ctx, "User", 7, map[string]any{
		"student_gpa": 3.9,
		"shoe_size":   42,
	}, SetOptions{})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)

	var count int64
	require.NoError(t, db.Model(&schema.AttributeValue{}).Count(&count).Error)
	assert.Zero(t, count, "a rejected bulk write must leave nothing behind")

	results, err := values.BulkSetAttributes(ctx, "User", 7, nil, SetOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetAttributesFilters(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.BulkSetAttributes(ctx, "User", 7, map[string]any{
		"student_gpa":         3.5,
		"student_major":       "History",
		"common_phone_number": "555-0100",
	}, SetOptions{})
	require.NoError(t, err)

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{Prefix: "student_"})
	require.NoError(t, err)
	assert.Len(t, attrs, 2)
	assert.NotContains(t, attrs, "common_phone_number")

	attrs, err = values.GetAttributes(ctx, "User", 7, GetQuery{Names: []string{"student_major"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"student_major": "History"}, attrs)

	// Unknown entity types read as empty.
	attrs, err = values.GetAttributes(ctx, "Spaceship", 7, GetQuery{})
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestGetAttributesMultiValued(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	def, err := values.registry.Definition("User", "student_interests")
	require.NoError(t, err)

	for slot, interest := range []string{"robotics", "chess"} {
		v := interest
		require.NoError(t, db.Create(&schema.AttributeValue{
			AttributeValueRow: schema.AttributeValueRow{
				EntityID:              7,
				AttributeDefinitionID: def.ID,
				StringValue:           &v,
				SortOrder:             slot,
			},
			EntityType: "User",
		}).Error)
	}

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, []any{"robotics", "chess"}, attrs["student_interests"])

	details, err := values.GetAttributesWithDetails(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	detail := details["student_interests"]
	assert.True(t, detail.IsMultiValued)
	assert.Equal(t, []any{"robotics", "chess"}, detail.Values)
}

func TestGetAttributesWithDetails(t *testing.T) {
	_, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "student_gpa", 3.75, SetOptions{})
	require.NoError(t, err)

	details, err := values.GetAttributesWithDetails(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	detail, ok := details["student_gpa"]
	require.True(t, ok)
	assert.Equal(t, "GPA", detail.DisplayName)
	assert.Equal(t, 3.75, detail.Value)
	assert.False(t, detail.UpdatedAt.IsZero())
}

func TestDeleteAttributeSoftAndRevive(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "student_major", "Physics", SetOptions{})
	require.NoError(t, err)

	count, err := values.DeleteAttribute(ctx, "User", 7, "student_major", DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	attrs, err := values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.NotContains(t, attrs, "student_major")

	// The row is retained, soft-deleted.
	var rows int64
	require.NoError(t, db.Model(&schema.AttributeValue{}).
		Where("entity_type = ? AND entity_id = ?", "User", 7).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	// Re-setting revives the row instead of colliding with it.
	res, err := values.SetAttribute(ctx, "User", 7, "student_major", "Biology", SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	attrs, err = values.GetAttributes(ctx, "User", 7, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Biology", attrs["student_major"])

	require.NoError(t, db.Model(&schema.AttributeValue{}).
		Where("entity_type = ? AND entity_id = ?", "User", 7).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestDeleteAttributeHard(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	_, err := values.SetAttribute(ctx, "User", 7, "student_major", "Physics", SetOptions{})
	require.NoError(t, err)

	count, err := values.DeleteAttribute(ctx, "User", 7, "student_major", DeleteOptions{Hard: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var rows int64
	require.NoError(t, db.Model(&schema.AttributeValue{}).Count(&rows).Error)
	assert.Zero(t, rows)

	// Deleting an absent attribute affects nothing.
	count, err = values.DeleteAttribute(ctx, "User", 7, "student_major", DeleteOptions{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEntityExistsAndReferenceValidation(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()
	createBaseTables(t, db)

	require.NoError(t, db.Exec("INSERT INTO users (id, name) VALUES (1, 'Ada')").Error)

	exists, err := values.EntityExists(ctx, "User", 1)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = values.EntityExists(ctx, "User", 99)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = values.SetAttribute(ctx, "User", 99, "student_gpa", 3.0, SetOptions{ValidateReference: true})
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, int64(99), refErr.EntityID)

	_, err = values.SetAttribute(ctx, "User", 1, "student_gpa", 3.0, SetOptions{ValidateReference: true})
	require.NoError(t, err)
}

func TestDedicatedStorageIsTransparent(t *testing.T) {
	db, values := newTestEngine(t)
	ctx := context.Background()

	res, err := values.SetAttribute(ctx, "Facility", 3, "building_code", "SCI-2", SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	attrs, err := values.GetAttributes(ctx, "Facility", 3, GetQuery{})
	require.NoError(t, err)
	assert.Equal(t, "SCI-2", attrs["building_code"])

	// The value landed in the dedicated table, not the shared one.
	var count int64
	require.NoError(t, db.Table("facilities_attribute_values").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&schema.AttributeValue{}).Count(&count).Error)
	assert.Zero(t, count)

	// Upsert semantics hold in the dedicated layout too.
	res, err = values.SetAttribute(ctx, "Facility", 3, "building_code", "SCI-3", SetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	require.NoError(t, db.Table("facilities_attribute_values").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	count, err = values.DeleteAttribute(ctx, "Facility", 3, "building_code", DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	attrs, err = values.GetAttributes(ctx, "Facility", 3, GetQuery{})
	require.NoError(t, err)
	assert.Empty(t, attrs)
}
