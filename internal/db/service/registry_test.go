package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

func TestRegistryEntityType(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, time.Minute, 0)

	et, err := registry.EntityType("User")
	require.NoError(t, err)
	require.NotNil(t, et)
	assert.Equal(t, "users", et.BaseTable)
	assert.Equal(t, schema.StorageShared, et.StorageStrategy)

	et, err = registry.EntityType("Facility")
	require.NoError(t, err)
	require.NotNil(t, et)
	assert.Equal(t, schema.StorageDedicated, et.StorageStrategy)

	// Unknown kinds resolve to nil without error.
	et, err = registry.EntityType("Spaceship")
	require.NoError(t, err)
	assert.Nil(t, et)
}

func TestRegistryDefinitionsForOrderingAndPrefix(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, time.Minute, 0)

	defs, err := registry.DefinitionsFor("User", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, defs, 8)
	assert.Equal(t, "student_gpa", defs[0].Name)
	assert.Equal(t, "legal_name", defs[7].Name)

	defs, err = registry.DefinitionsFor("User", DefinitionQuery{Prefix: "student_", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, defs, 5)
	for _, def := range defs {
		assert.Contains(t, def.Name, "student_")
	}

	// Unknown entity type reads come back empty, not as errors.
	defs, err = registry.DefinitionsFor("Spaceship", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestRegistryDefinitionLookup(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, time.Minute, 0)

	def, err := registry.Definition("User", "student_gpa")
	require.NoError(t, err)
	assert.Equal(t, "decimal", def.ValueType)

	_, err = registry.Definition("User", "no_such_attribute")
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "no_such_attribute", schemaErr.Attribute)

	_, err = registry.Definition("Spaceship", "anything")
	require.ErrorAs(t, err, &schemaErr)
}

func TestRegistryActiveOnlyFiltersInactive(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, time.Minute, 0)

	require.NoError(t, db.Model(&schema.AttributeDefinition{}).
		Where("name = ?", "student_bio").
		Update("is_active", false).Error)
	registry.ClearCache()

	defs, err := registry.DefinitionsFor("User", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	for _, def := range defs {
		assert.NotEqual(t, "student_bio", def.Name)
	}

	defs, err = registry.DefinitionsFor("User", DefinitionQuery{})
	require.NoError(t, err)
	found := false
	for _, def := range defs {
		if def.Name == "student_bio" {
			found = true
		}
	}
	assert.True(t, found, "inactive definitions stay listable without ActiveOnly")

	// Inactive attributes are invisible to the write path.
	_, err = registry.Definition("User", "student_bio")
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestRegistryCachesUntilCleared(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, time.Hour, 0)

	defs, err := registry.DefinitionsFor("Assessment", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, defs, 2)

	et, err := registry.EntityType("Assessment")
	require.NoError(t, err)
	require.NoError(t, db.Create(&schema.AttributeDefinition{
		EntityTypeID: et.ID,
		Name:         "grading_scale",
		ValueType:    "string",
		IsActive:     true,
	}).Error)

	// Within the TTL the cached schema is served.
	defs, err = registry.DefinitionsFor("Assessment", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, defs, 2)

	registry.ClearCache()
	defs, err = registry.DefinitionsFor("Assessment", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, defs, 3)
}

func TestRegistryCacheExpires(t *testing.T) {
	db, _ := newTestEngine(t)
	registry := NewDefinitionRegistry(db, 20*time.Millisecond, 0)

	_, err := registry.DefinitionsFor("Assessment", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)

	et, err := registry.EntityType("Assessment")
	require.NoError(t, err)
	require.NoError(t, db.Create(&schema.AttributeDefinition{
		EntityTypeID: et.ID,
		Name:         "grading_scale",
		ValueType:    "string",
		IsActive:     true,
	}).Error)

	time.Sleep(30 * time.Millisecond)

	defs, err := registry.DefinitionsFor("Assessment", DefinitionQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, defs, 3, "expired cache entry must be reloaded")
}
