package service

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/models"
	"github.com/campushub/attribute-registry/internal/db/schema"
)

// AttributeSpec declares one attribute definition to provision.
type AttributeSpec struct {
	Name          string
	DisplayName   string
	Description   string
	ValueType     string
	IsRequired    bool
	IsMultiValued bool
	DefaultValue  string
	SortOrder     int
}

// EntityTypeSpec declares one entity type and its attributes to provision.
type EntityTypeSpec struct {
	Name            string
	Table           string
	StorageStrategy string
	Attributes      []AttributeSpec
}

// Provisioner applies a declared schema idempotently: entity types and
// attribute definitions are created when absent and updated in place when
// their declaration changed. Nothing is ever hard-deleted; definitions
// missing from the declaration are left untouched.
type Provisioner struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewProvisioner creates a provisioner. A nil logger falls back to
// slog.Default.
func NewProvisioner(db *gorm.DB, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{db: db, logger: logger}
}

// Apply migrates the engine tables and provisions the declared schema.
// Call registry.ClearCache afterwards when a registry is already live.
func (p *Provisioner) Apply(specs []EntityTypeSpec) error {
	entityTypes := make([]schema.EntityType, 0, len(specs))
	for _, spec := range specs {
		et, err := normalizeEntityTypeSpec(spec)
		if err != nil {
			return err
		}
		entityTypes = append(entityTypes, et)
	}

	if err := Migrate(p.db, entityTypes); err != nil {
		return err
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		for i, spec := range specs {
			if err := p.applyEntityType(tx, entityTypes[i], spec.Attributes); err != nil {
				return fmt.Errorf("provision entity type %q: %w", spec.Name, err)
			}
		}
		return nil
	})
}

func (p *Provisioner) applyEntityType(tx *gorm.DB, want schema.EntityType, attrs []AttributeSpec) error {
	var et schema.EntityType
	err := tx.Where("name = ?", want.Name).First(&et).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		et = want
		if err := tx.Create(&et).Error; err != nil {
			return fmt.Errorf("create entity type: %w", err)
		}
		p.logger.Info("provisioned entity type", "name", et.Name, "storage", et.StorageStrategy)
	case err != nil:
		return fmt.Errorf("load entity type: %w", err)
	default:
		// The storage strategy is chosen once; changing it would orphan
		// stored values, so it is deliberately not updated here.
		if et.BaseTable != want.BaseTable || !et.IsActive {
			et.BaseTable = want.BaseTable
			et.IsActive = true
			if err := tx.Save(&et).Error; err != nil {
				return fmt.Errorf("update entity type: %w", err)
			}
		}
	}

	for _, attr := range attrs {
		if err := p.applyDefinition(tx, et.ID, attr); err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
	}
	return nil
}

func (p *Provisioner) applyDefinition(tx *gorm.DB, entityTypeID int64, attr AttributeSpec) error {
	if !models.ValidType(models.ValueType(attr.ValueType)) {
		return &ValidationError{Attribute: attr.Name, Reason: fmt.Sprintf("unknown value type %q", attr.ValueType)}
	}

	var def schema.AttributeDefinition
	err := tx.Where("entity_type_id = ? AND name = ?", entityTypeID, attr.Name).First(&def).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		def = schema.AttributeDefinition{
			EntityTypeID:  entityTypeID,
			Name:          attr.Name,
			DisplayName:   attr.DisplayName,
			Description:   attr.Description,
			ValueType:     attr.ValueType,
			IsRequired:    attr.IsRequired,
			IsMultiValued: attr.IsMultiValued,
			SortOrder:     attr.SortOrder,
			IsActive:      true,
		}
		if attr.DefaultValue != "" {
			def.DefaultValue = &attr.DefaultValue
		}
		if err := tx.Create(&def).Error; err != nil {
			return fmt.Errorf("create definition: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load definition: %w", err)
	}

	// Value type changes are refused: stored rows already committed to a
	// column. Everything else follows the declaration.
	if def.ValueType != attr.ValueType {
		return &ValidationError{
			Attribute: attr.Name,
			Reason:    fmt.Sprintf("value type cannot change from %q to %q", def.ValueType, attr.ValueType),
		}
	}

	def.DisplayName = attr.DisplayName
	def.Description = attr.Description
	def.IsRequired = attr.IsRequired
	def.IsMultiValued = attr.IsMultiValued
	def.SortOrder = attr.SortOrder
	def.IsActive = true
	if attr.DefaultValue != "" {
		def.DefaultValue = &attr.DefaultValue
	} else {
		def.DefaultValue = nil
	}
	if err := tx.Save(&def).Error; err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	return nil
}

func normalizeEntityTypeSpec(spec EntityTypeSpec) (schema.EntityType, error) {
	if spec.Name == "" || spec.Table == "" {
		return schema.EntityType{}, &ValidationError{Attribute: spec.Name, Reason: "entity type needs a name and a table"}
	}
	strategy := spec.StorageStrategy
	if strategy == "" {
		strategy = schema.StorageShared
	}
	if strategy != schema.StorageShared && strategy != schema.StorageDedicated {
		return schema.EntityType{}, &ValidationError{
			Attribute: spec.Name,
			Reason:    fmt.Sprintf("unknown storage strategy %q", strategy),
		}
	}
	return schema.EntityType{
		Name:            spec.Name,
		BaseTable:       spec.Table,
		StorageStrategy: strategy,
		IsActive:        true,
	}, nil
}
