// Package schema defines the GORM table definitions for the attribute
// registry: entity types, attribute definitions, attribute values (shared
// and dedicated layouts), the audit log, and role membership.
package schema

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Storage strategies selectable per entity type.
const (
	StorageShared    = "shared"
	StorageDedicated = "dedicated"
)

// EntityType is one record kind that can carry dynamic attributes
// (User, Role, Assessment, Facility, Instructor). Provisioned at setup,
// soft-deleted when retired, never hard-deleted.
type EntityType struct {
	ID              int64          `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	Name            string         `gorm:"column:name;uniqueIndex:idx_entity_types_name;not null" json:"name"`
	BaseTable       string         `gorm:"column:table_name;not null" json:"table"`
	StorageStrategy string         `gorm:"column:storage_strategy;default:shared;not null" json:"storageStrategy"`
	IsActive        bool           `gorm:"column:is_active;default:true;not null" json:"isActive"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName returns the GORM table name.
func (EntityType) TableName() string { return "entity_types" }

// ValueTableName returns the dedicated attribute-value table for this entity
// type, e.g. "facilities" -> "facilities_attribute_values". Only meaningful
// when StorageStrategy is StorageDedicated.
func (t EntityType) ValueTableName() string {
	return fmt.Sprintf("%s_attribute_values", t.BaseTable)
}

// AttributeDefinition declares the schema for one dynamic attribute an
// entity type may carry. (entity_type_id, name) is unique among live rows.
type AttributeDefinition struct {
	ID              int64          `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	EntityTypeID    int64          `gorm:"column:entity_type_id;index;not null" json:"entityTypeId"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	DisplayName     string         `gorm:"column:display_name" json:"displayName,omitempty"`
	Description     string         `gorm:"column:description" json:"description,omitempty"`
	ValueType       string         `gorm:"column:value_type;not null" json:"valueType"`
	IsRequired      bool           `gorm:"column:is_required;default:false;not null" json:"isRequired"`
	IsMultiValued   bool           `gorm:"column:is_multi_valued;default:false;not null" json:"isMultiValued"`
	DefaultValue    *string        `gorm:"column:default_value" json:"defaultValue,omitempty"`
	ValidationRules *string        `gorm:"column:validation_rules;type:text" json:"validationRules,omitempty"`
	SortOrder       int            `gorm:"column:sort_order;default:0;not null" json:"sortOrder"`
	IsActive        bool           `gorm:"column:is_active;default:true;not null" json:"isActive"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName returns the GORM table name.
func (AttributeDefinition) TableName() string { return "attribute_definitions" }

// AttributeValueRow holds the columns common to both value-table layouts.
// Exactly one of the typed value columns is non-null, matching the
// definition's value type. SortOrder is the storage slot: 0 for scalar
// attributes, the item slot for multi-valued and grouped attributes.
//
// DeletedAt is a plain nullable timestamp rather than gorm.DeletedAt because
// rows are read and written through dynamic table names, where the engine
// applies live-row filters explicitly.
type AttributeValueRow struct {
	ID                    int64      `gorm:"primaryKey;column:id;autoIncrement"`
	EntityID              int64      `gorm:"column:entity_id;not null"`
	AttributeDefinitionID int64      `gorm:"column:attribute_definition_id;not null"`
	StringValue           *string    `gorm:"column:string_value;size:255"`
	IntegerValue          *int64     `gorm:"column:integer_value"`
	DecimalValue          *float64   `gorm:"column:decimal_value"`
	BooleanValue          *bool      `gorm:"column:boolean_value"`
	DateValue             *time.Time `gorm:"column:date_value"`
	DatetimeValue         *time.Time `gorm:"column:datetime_value"`
	TextValue             *string    `gorm:"column:text_value;type:text"`
	JSONValue             *string    `gorm:"column:json_value;type:text"`
	SortOrder             int        `gorm:"column:sort_order;default:0;not null"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
	DeletedAt             *time.Time `gorm:"column:deleted_at"`
}

// AttributeValue is the shared polymorphic layout: one table for every
// entity type that uses the StorageShared strategy.
type AttributeValue struct {
	AttributeValueRow
	EntityType string `gorm:"column:entity_type;not null"`
}

// TableName returns the GORM table name.
func (AttributeValue) TableName() string { return "attribute_values" }

// AttributeAuditEntry is one immutable record of an attribute mutation.
// Values are serialized as text; rows are never updated or deleted by the
// engine.
type AttributeAuditEntry struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	EntityType    string    `gorm:"column:entity_type;index:idx_attr_audit_entity,priority:1;not null" json:"entityType"`
	EntityID      int64     `gorm:"column:entity_id;index:idx_attr_audit_entity,priority:2;not null" json:"entityId"`
	AttributeName string    `gorm:"column:attribute_name;index" json:"attributeName"`
	Action        string    `gorm:"column:action;not null" json:"action"`
	OldValue      *string   `gorm:"column:old_value;type:text" json:"oldValue,omitempty"`
	NewValue      *string   `gorm:"column:new_value;type:text" json:"newValue,omitempty"`
	ActorID       *int64    `gorm:"column:actor_id" json:"actorId,omitempty"`
	Reason        string    `gorm:"column:reason" json:"reason,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;index;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (AttributeAuditEntry) TableName() string { return "attribute_audit_log" }

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// UserRole links a user to a role. The user and role base tables live
// outside this module; the join table is owned here because the permission
// aggregator needs it.
type UserRole struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex:idx_user_roles_pair,priority:1;not null"`
	RoleID    int64     `gorm:"column:role_id;uniqueIndex:idx_user_roles_pair,priority:2;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (UserRole) TableName() string { return "user_roles" }
