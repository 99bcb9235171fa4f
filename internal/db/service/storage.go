package service

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

// valueUpdateColumns are the columns rewritten when an upsert hits the
// identity index. deleted_at is included so re-setting a soft-deleted
// attribute revives the row.
var valueUpdateColumns = []string{
	"string_value", "integer_value", "decimal_value", "boolean_value",
	"date_value", "datetime_value", "text_value", "json_value",
	"updated_at", "deleted_at",
}

// valueStorage abstracts the two physical layouts of the AttributeValue
// entity. The engine, registry, aggregator, and grouped-record emulator
// never know which layout backs a given entity kind.
type valueStorage interface {
	// Table returns the physical table name.
	Table() string
	// Scoped returns a query over the table filtered to one entity
	// instance. Live-row filtering is left to the caller.
	Scoped(tx *gorm.DB, entityID int64) *gorm.DB
	// Upsert inserts the row or, on identity conflict
	// (entity, definition, slot), rewrites its value columns in place as a
	// single atomic statement.
	Upsert(tx *gorm.DB, row *schema.AttributeValueRow) error
}

// storageFor selects the storage implementation from the entity type's
// strategy flag. The choice is made once per entity type, not per call.
func storageFor(et *schema.EntityType) valueStorage {
	if et.StorageStrategy == schema.StorageDedicated {
		return &dedicatedStorage{table: et.ValueTableName()}
	}
	return &sharedStorage{entityType: et.Name}
}

// sharedStorage is the default layout: one polymorphic attribute_values
// table keyed by (entity_type, entity_id).
type sharedStorage struct {
	entityType string
}

func (s *sharedStorage) Table() string { return schema.AttributeValue{}.TableName() }

func (s *sharedStorage) Scoped(tx *gorm.DB, entityID int64) *gorm.DB {
	return tx.Table(s.Table()).Where("entity_type = ? AND entity_id = ?", s.entityType, entityID)
}

func (s *sharedStorage) Upsert(tx *gorm.DB, row *schema.AttributeValueRow) error {
	rec := schema.AttributeValue{AttributeValueRow: *row, EntityType: s.entityType}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"}, {Name: "entity_id"},
			{Name: "attribute_definition_id"}, {Name: "sort_order"},
		},
		DoUpdates: clause.AssignmentColumns(valueUpdateColumns),
	}).Create(&rec).Error
	if err != nil {
		return err
	}
	row.ID = rec.ID
	return nil
}

// dedicatedStorage is the per-kind layout: a <base_table>_attribute_values
// table keyed by entity_id alone.
type dedicatedStorage struct {
	table string
}

func (s *dedicatedStorage) Table() string { return s.table }

func (s *dedicatedStorage) Scoped(tx *gorm.DB, entityID int64) *gorm.DB {
	return tx.Table(s.table).Where("entity_id = ?", entityID)
}

func (s *dedicatedStorage) Upsert(tx *gorm.DB, row *schema.AttributeValueRow) error {
	return tx.Table(s.table).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_id"}, {Name: "attribute_definition_id"}, {Name: "sort_order"},
		},
		DoUpdates: clause.AssignmentColumns(valueUpdateColumns),
	}).Create(row).Error
}

// Migrate creates or updates every table the engine owns, including one
// dedicated value table per entity type flagged StorageDedicated, and the
// composite identity indexes the upsert path relies on. Index names carry
// the table name because index namespaces are database-global on SQLite.
func Migrate(db *gorm.DB, entityTypes []schema.EntityType) error {
	if err := db.AutoMigrate(
		&schema.EntityType{},
		&schema.AttributeDefinition{},
		&schema.AttributeValue{},
		&schema.AttributeAuditEntry{},
		&schema.UserRole{},
	); err != nil {
		return fmt.Errorf("migrate registry tables: %w", err)
	}

	shared := schema.AttributeValue{}.TableName()
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_identity ON %s (entity_type, entity_id, attribute_definition_id, sort_order)",
		shared, shared,
	)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create identity index on %s: %w", shared, err)
	}

	for _, et := range entityTypes {
		if et.StorageStrategy != schema.StorageDedicated {
			continue
		}
		table := et.ValueTableName()
		if err := db.Table(table).AutoMigrate(&schema.AttributeValueRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_identity ON %s (entity_id, attribute_definition_id, sort_order)",
			table, table,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create identity index on %s: %w", table, err)
		}
	}

	return nil
}
