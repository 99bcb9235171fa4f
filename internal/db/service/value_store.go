package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/models"
	"github.com/campushub/attribute-registry/internal/db/schema"
)

// Actions reported by set operations.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// SetOptions carries write metadata and optional checks.
type SetOptions struct {
	ActorID *int64
	Reason  string
	// ValidateReference verifies the entity id exists in its owning table
	// before writing. Off by default; the controller layer decides.
	ValidateReference bool
}

// SetResult reports the affected row and whether it was created or updated.
type SetResult struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

// GetQuery filters an attribute read.
type GetQuery struct {
	Prefix string
	Names  []string
}

// DeleteOptions controls delete behavior. The default is a soft delete.
type DeleteOptions struct {
	Hard    bool
	ActorID *int64
	Reason  string
}

// AttributeDetail is the schema-aware read result for one attribute.
type AttributeDetail struct {
	Name          string           `json:"name"`
	DisplayName   string           `json:"displayName,omitempty"`
	ValueType     models.ValueType `json:"valueType"`
	IsMultiValued bool             `json:"isMultiValued"`
	Value         any              `json:"value,omitempty"`
	Values        []any            `json:"values,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ValueStore is the attribute engine: typed get/set/bulk-set/delete of
// attribute values for any entity kind, transactional per call, with audit
// entries written inside the same transaction. Storage layout (shared vs
// dedicated table) is resolved per entity type and invisible to callers.
type ValueStore struct {
	db       *gorm.DB
	registry *DefinitionRegistry
	audit    *AuditTrail
}

// NewValueStore creates the engine.
func NewValueStore(db *gorm.DB, registry *DefinitionRegistry, audit *AuditTrail) *ValueStore {
	return &ValueStore{db: db, registry: registry, audit: audit}
}

// Registry exposes the definition registry for schema listings.
func (s *ValueStore) Registry() *DefinitionRegistry { return s.registry }

// SetAttribute validates and writes one attribute value as an atomic upsert.
// The reported action comes from a pre-upsert lookup in the same
// transaction; the upsert itself is a single statement, so concurrent
// writers to the same (entity, attribute) pair cannot produce duplicate
// rows.
func (s *ValueStore) SetAttribute(ctx context.Context, entityType string, entityID int64, name string, value any, opts SetOptions) (SetResult, error) {
	def, err := s.registry.Definition(entityType, name)
	if err != nil {
		return SetResult{}, err
	}
	if def.IsRequired && models.IsEmpty(value) {
		return SetResult{}, &ValidationError{Attribute: name, Reason: "required attribute must not be empty"}
	}

	et, err := s.registry.EntityType(entityType)
	if err != nil {
		return SetResult{}, err
	}
	if opts.ValidateReference {
		exists, err := s.EntityExists(ctx, entityType, entityID)
		if err != nil {
			return SetResult{}, err
		}
		if !exists {
			return SetResult{}, &ReferenceError{EntityType: entityType, EntityID: entityID}
		}
	}

	st := storageFor(et)
	var result SetResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.setInTx(tx, st, et, def, entityID, 0, value, opts)
		return txErr
	})
	if err != nil {
		return SetResult{}, asEngineError("set attribute", err)
	}
	return result, nil
}

// BulkSetAttributes writes several attributes in one transaction,
// all-or-nothing. Any attribute name undefined for the entity type rejects
// the whole call before anything is written. Empty input is a no-op.
func (s *ValueStore) BulkSetAttributes(ctx context.Context, entityType string, entityID int64, values map[string]any, opts SetOptions) (map[string]SetResult, error) {
	results := make(map[string]SetResult, len(values))
	if len(values) == 0 {
		return results, nil
	}

	et, err := s.registry.EntityType(entityType)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, &SchemaError{EntityType: entityType}
	}

	defs, err := s.registry.DefinitionsFor(entityType, DefinitionQuery{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	defByName := make(map[string]*schema.AttributeDefinition, len(defs))
	for i := range defs {
		defByName[defs[i].Name] = &defs[i]
	}

	names := make([]string, 0, len(values))
	for name := range values {
		def, ok := defByName[name]
		if !ok {
			return nil, &SchemaError{EntityType: entityType, Attribute: name}
		}
		if def.IsRequired && models.IsEmpty(values[name]) {
			return nil, &ValidationError{Attribute: name, Reason: "required attribute must not be empty"}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if opts.ValidateReference {
		exists, err := s.EntityExists(ctx, entityType, entityID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &ReferenceError{EntityType: entityType, EntityID: entityID}
		}
	}

	st := storageFor(et)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			res, txErr := s.setInTx(tx, st, et, defByName[name], entityID, 0, values[name], opts)
			if txErr != nil {
				return txErr
			}
			results[name] = res
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError("bulk set attributes", err)
	}
	return results, nil
}

// GetAttributes returns the decoded attribute values of one entity
// instance. Multi-valued attributes yield []any ordered by storage slot;
// scalar attributes read slot 0 only, so grouped-record rows never leak
// into plain reads. Unknown entity types and missing attributes yield
// absent keys, never errors: the read path stays quiet.
func (s *ValueStore) GetAttributes(ctx context.Context, entityType string, entityID int64, q GetQuery) (map[string]any, error) {
	out := map[string]any{}
	err := s.eachStoredValue(ctx, entityType, entityID, q, func(def *schema.AttributeDefinition, row schema.AttributeValueRow) error {
		if !def.IsMultiValued && row.SortOrder != 0 {
			return nil
		}
		value, err := models.Decode(models.ColumnsFromRow(row), models.ValueType(def.ValueType))
		if err != nil {
			return err
		}
		if def.IsMultiValued {
			list, _ := out[def.Name].([]any)
			out[def.Name] = append(list, value)
			return nil
		}
		out[def.Name] = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAttributesWithDetails returns values together with their definition
// metadata, for schema-aware consumers such as dynamic form builders.
func (s *ValueStore) GetAttributesWithDetails(ctx context.Context, entityType string, entityID int64, q GetQuery) (map[string]AttributeDetail, error) {
	out := map[string]AttributeDetail{}
	err := s.eachStoredValue(ctx, entityType, entityID, q, func(def *schema.AttributeDefinition, row schema.AttributeValueRow) error {
		if !def.IsMultiValued && row.SortOrder != 0 {
			return nil
		}
		value, err := models.Decode(models.ColumnsFromRow(row), models.ValueType(def.ValueType))
		if err != nil {
			return err
		}
		detail, seen := out[def.Name]
		if !seen {
			detail = AttributeDetail{
				Name:          def.Name,
				DisplayName:   def.DisplayName,
				ValueType:     models.ValueType(def.ValueType),
				IsMultiValued: def.IsMultiValued,
			}
		}
		if def.IsMultiValued {
			detail.Values = append(detail.Values, value)
		} else if !seen {
			detail.Value = value
		}
		if row.UpdatedAt.After(detail.UpdatedAt) {
			detail.UpdatedAt = row.UpdatedAt
		}
		out[def.Name] = detail
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAttribute removes an attribute's rows for one entity. The default
// is a soft delete excluded from subsequent reads; Hard physically removes
// the rows. Every removed row gets an audit entry. Returns the number of
// rows affected.
func (s *ValueStore) DeleteAttribute(ctx context.Context, entityType string, entityID int64, name string, opts DeleteOptions) (int64, error) {
	def, err := s.registry.Definition(entityType, name)
	if err != nil {
		return 0, err
	}
	et, err := s.registry.EntityType(entityType)
	if err != nil {
		return 0, err
	}
	st := storageFor(et)

	var count int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []schema.AttributeValueRow
		if err := st.Scoped(tx, entityID).
			Where("attribute_definition_id = ? AND deleted_at IS NULL", def.ID).
			Order("sort_order ASC").
			Find(&rows).Error; err != nil {
			return fmt.Errorf("load rows for delete: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			old, decErr := models.Decode(models.ColumnsFromRow(row), models.ValueType(def.ValueType))
			if decErr != nil {
				return decErr
			}
			if err := s.audit.Log(tx, AuditEntry{
				EntityType:    entityType,
				EntityID:      entityID,
				AttributeName: def.Name,
				Action:        schema.AuditActionDelete,
				OldValue:      models.FormatValue(old),
				ActorID:       opts.ActorID,
				Reason:        opts.Reason,
			}); err != nil {
				return err
			}
		}

		scope := st.Scoped(tx, entityID).Where("attribute_definition_id = ? AND deleted_at IS NULL", def.ID)
		if opts.Hard {
			res := scope.Delete(&schema.AttributeValueRow{})
			if res.Error != nil {
				return fmt.Errorf("hard delete rows: %w", res.Error)
			}
			count = res.RowsAffected
			return nil
		}
		res := scope.Update("deleted_at", time.Now().UTC())
		if res.Error != nil {
			return fmt.Errorf("soft delete rows: %w", res.Error)
		}
		count = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, asEngineError("delete attribute", err)
	}
	return count, nil
}

// EntityExists checks that the entity instance is present in its owning
// base table. This is the optional reference-check helper; the base tables
// themselves are not owned by this module.
func (s *ValueStore) EntityExists(ctx context.Context, entityType string, entityID int64) (bool, error) {
	et, err := s.registry.EntityType(entityType)
	if err != nil {
		return false, err
	}
	if et == nil {
		return false, &SchemaError{EntityType: entityType}
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(et.BaseTable).Where("id = ?", entityID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check %s reference: %w", et.BaseTable, err)
	}
	return n > 0, nil
}

// setInTx performs one validated upsert plus its audit entry inside tx.
// slot is the storage slot: 0 for scalars, the item slot for grouped and
// multi-valued writes.
func (s *ValueStore) setInTx(tx *gorm.DB, st valueStorage, et *schema.EntityType, def *schema.AttributeDefinition, entityID int64, slot int, value any, opts SetOptions) (SetResult, error) {
	cols, err := models.Encode(value, models.ValueType(def.ValueType))
	if err != nil {
		return SetResult{}, &ValidationError{Attribute: def.Name, Reason: err.Error()}
	}

	// Pre-upsert lookup: source of the audit old value and of the reported
	// created/updated action. The upsert below stays a single atomic
	// statement regardless.
	var existing []schema.AttributeValueRow
	if err := st.Scoped(tx, entityID).
		Where("attribute_definition_id = ? AND sort_order = ?", def.ID, slot).
		Limit(1).
		Find(&existing).Error; err != nil {
		return SetResult{}, fmt.Errorf("lookup existing value: %w", err)
	}

	now := time.Now().UTC()
	row := schema.AttributeValueRow{
		EntityID:              entityID,
		AttributeDefinitionID: def.ID,
		SortOrder:             slot,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	cols.Apply(&row)

	if err := st.Upsert(tx, &row); err != nil {
		return SetResult{}, &ConstraintError{Op: "upsert attribute value", Err: err}
	}

	result := SetResult{ID: row.ID, Action: ActionCreated}
	action := schema.AuditActionCreate
	var oldValue *string
	if len(existing) > 0 && existing[0].DeletedAt == nil {
		result = SetResult{ID: existing[0].ID, Action: ActionUpdated}
		action = schema.AuditActionUpdate
		old, decErr := models.Decode(models.ColumnsFromRow(existing[0]), models.ValueType(def.ValueType))
		if decErr != nil {
			return SetResult{}, decErr
		}
		oldValue = models.FormatValue(old)
	} else if len(existing) > 0 {
		// Reviving a soft-deleted row keeps its id but counts as a create.
		result.ID = existing[0].ID
	}

	newValue, decErr := models.Decode(cols, models.ValueType(def.ValueType))
	if decErr != nil {
		return SetResult{}, decErr
	}
	if err := s.audit.Log(tx, AuditEntry{
		EntityType:    et.Name,
		EntityID:      entityID,
		AttributeName: def.Name,
		Action:        action,
		OldValue:      oldValue,
		NewValue:      models.FormatValue(newValue),
		ActorID:       opts.ActorID,
		Reason:        opts.Reason,
	}); err != nil {
		return SetResult{}, err
	}

	return result, nil
}

// eachStoredValue streams the live rows of one entity instance to fn,
// joined with their definitions, ordered by storage slot. Unknown entity
// types visit nothing.
func (s *ValueStore) eachStoredValue(ctx context.Context, entityType string, entityID int64, q GetQuery, fn func(*schema.AttributeDefinition, schema.AttributeValueRow) error) error {
	et, err := s.registry.EntityType(entityType)
	if err != nil {
		return err
	}
	if et == nil {
		return nil
	}

	defs, err := s.registry.DefinitionsFor(entityType, DefinitionQuery{Prefix: q.Prefix, ActiveOnly: true})
	if err != nil {
		return err
	}
	if len(q.Names) > 0 {
		wanted := make(map[string]bool, len(q.Names))
		for _, n := range q.Names {
			wanted[n] = true
		}
		filtered := defs[:0]
		for _, def := range defs {
			if wanted[def.Name] {
				filtered = append(filtered, def)
			}
		}
		defs = filtered
	}
	if len(defs) == 0 {
		return nil
	}

	defByID := make(map[int64]*schema.AttributeDefinition, len(defs))
	ids := make([]int64, 0, len(defs))
	for i := range defs {
		defByID[defs[i].ID] = &defs[i]
		ids = append(ids, defs[i].ID)
	}

	st := storageFor(et)
	var rows []schema.AttributeValueRow
	if err := st.Scoped(s.db.WithContext(ctx), entityID).
		Where("attribute_definition_id IN ? AND deleted_at IS NULL", ids).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("load attribute values: %w", err)
	}

	for _, row := range rows {
		def, ok := defByID[row.AttributeDefinitionID]
		if !ok {
			continue
		}
		if err := fn(def, row); err != nil {
			return err
		}
	}
	return nil
}

// asEngineError passes the typed taxonomy through untouched and wraps
// everything else as a TransactionError: the transaction has rolled back
// and no partial writes remain.
func asEngineError(op string, err error) error {
	var (
		schemaErr     *SchemaError
		validationErr *ValidationError
		referenceErr  *ReferenceError
		constraintErr *ConstraintError
	)
	if errors.As(err, &schemaErr) || errors.As(err, &validationErr) ||
		errors.As(err, &referenceErr) || errors.As(err, &constraintErr) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
