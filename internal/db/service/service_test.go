package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database capped at one connection so
// every query sees the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

// testSchema is the fixture schema shared by the engine tests: shared-storage
// users, roles, instructors and assessments, plus dedicated-storage
// facilities carrying the grouped equipment family.
func testSchema() []EntityTypeSpec {
	return []EntityTypeSpec{
		{
			Name:  "User",
			Table: "users",
			Attributes: []AttributeSpec{
				{Name: "student_gpa", DisplayName: "GPA", ValueType: "decimal", SortOrder: 1},
				{Name: "student_major", DisplayName: "Major", ValueType: "string", SortOrder: 2},
				{Name: "student_enrolled", ValueType: "date", SortOrder: 3},
				{Name: "student_bio", ValueType: "text", SortOrder: 4},
				{Name: "student_interests", ValueType: "string", IsMultiValued: true, SortOrder: 5},
				{Name: "common_phone_number", DisplayName: "Phone", ValueType: "string", SortOrder: 6},
				{Name: "common_preferences", ValueType: "json", SortOrder: 7},
				{Name: "legal_name", ValueType: "string", IsRequired: true, SortOrder: 8},
			},
		},
		{
			Name:  "Role",
			Table: "roles",
			Attributes: []AttributeSpec{
				{Name: "can_grade_assignments", ValueType: "boolean", DefaultValue: "false", SortOrder: 1},
				{Name: "can_manage_users", ValueType: "boolean", DefaultValue: "false", SortOrder: 2},
				{Name: "can_max_course_load", ValueType: "integer", DefaultValue: "2", SortOrder: 3},
				{Name: "can_access_buildings", ValueType: "json", SortOrder: 4},
				{Name: "can_report_scope", ValueType: "string", SortOrder: 5},
				{Name: "office_location", ValueType: "string", SortOrder: 6},
			},
		},
		{
			Name:            "Facility",
			Table:           "facilities",
			StorageStrategy: "dedicated",
			Attributes: []AttributeSpec{
				{Name: "equipment_group_id", ValueType: "string", SortOrder: 1},
				{Name: "equipment_name", ValueType: "string", SortOrder: 2},
				{Name: "equipment_type", ValueType: "string", SortOrder: 3},
				{Name: "equipment_quantity", ValueType: "integer", SortOrder: 4},
				{Name: "equipment_migrated", ValueType: "boolean", SortOrder: 5},
				{Name: "building_code", ValueType: "string", SortOrder: 6},
			},
		},
		{
			Name:  "Instructor",
			Table: "instructors",
			Attributes: []AttributeSpec{
				{Name: "award_group_id", ValueType: "string", SortOrder: 1},
				{Name: "award_title", ValueType: "string", SortOrder: 2},
				{Name: "award_year", ValueType: "integer", SortOrder: 3},
			},
		},
		{
			Name:  "Assessment",
			Table: "assessments",
			Attributes: []AttributeSpec{
				{Name: "rubric_url", ValueType: "string", SortOrder: 1},
				{Name: "late_policy", ValueType: "text", SortOrder: 2},
			},
		},
	}
}

// newTestEngine provisions the fixture schema and wires up the full engine.
func newTestEngine(t *testing.T) (*gorm.DB, *ValueStore) {
	t.Helper()

	db := newTestDB(t)
	require.NoError(t, NewProvisioner(db, nil).Apply(testSchema()))

	registry := NewDefinitionRegistry(db, time.Minute, 0)
	audit := NewAuditTrail(db, nil)
	return db, NewValueStore(db, registry, audit)
}

// createBaseTables creates minimal stand-ins for the entity base tables,
// which live outside this module in production.
func createBaseTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE IF NOT EXISTS facilities (id INTEGER PRIMARY KEY, name TEXT, equipment_list TEXT)",
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
}
