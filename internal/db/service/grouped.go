package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/models"
	"github.com/campushub/attribute-registry/internal/db/schema"
)

// GroupSpec declares how a family of attributes emulates a child record:
// every attribute under Prefix belongs to the family, GroupAttribute stores
// the synthetic item identifier, and all rows of one item share a storage
// slot.
type GroupSpec struct {
	Prefix         string
	GroupAttribute string
	// MigratedFlagAttribute, when set, is a boolean attribute flipped to
	// true after a grouped write, for domains that track migration off a
	// legacy inline column.
	MigratedFlagAttribute string
}

// GroupedItem is one reconstructed child record.
type GroupedItem struct {
	ID     string         `json:"id"`
	Slot   int            `json:"-"`
	Fields map[string]any `json:"fields"`
}

// GroupedStore presents N attribute rows sharing one storage slot as a
// single logical item. Slots are allocated monotonically starting at 1
// (slot 0 belongs to scalar attributes); the composite identity index
// guarantees a slot holds at most one row per attribute, so two items can
// never merge on read.
type GroupedStore struct {
	values *ValueStore
}

// NewGroupedStore creates the emulator on top of the value store.
func NewGroupedStore(values *ValueStore) *GroupedStore {
	return &GroupedStore{values: values}
}

// groupContext is everything resolved from the registry before a grouped
// transaction opens. Registry and entity-type lookups stay outside the
// transaction so in-flight transactions never read through the pool.
type groupContext struct {
	et       *schema.EntityType
	st       valueStorage
	fields   map[string]*schema.AttributeDefinition
	groupDef *schema.AttributeDefinition
	flagDef  *schema.AttributeDefinition
	familyID []int64
}

// AddItem writes a new child record: it allocates the next slot, generates
// a group id, and stores the group-id attribute plus every provided field
// at that slot in one transaction. Field keys are attribute names and must
// be defined under the spec's prefix.
func (g *GroupedStore) AddItem(ctx context.Context, entityType string, entityID int64, spec GroupSpec, fields map[string]any, opts SetOptions) (GroupedItem, error) {
	gc, err := g.resolve(entityType, spec)
	if err != nil {
		return GroupedItem{}, err
	}

	var item GroupedItem
	err = g.values.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		item, txErr = g.addItemInTx(tx, gc, entityID, fields, opts, true)
		return txErr
	})
	if err != nil {
		return GroupedItem{}, asEngineError("add grouped item", err)
	}
	return item, nil
}

// addItemInTx writes one child record inside the caller's transaction.
// setFlag controls whether the spec's migrated-flag attribute is flipped;
// batch callers leave it false and set the flag once after every item
// landed, so a failure anywhere rolls back the whole batch unflagged.
func (g *GroupedStore) addItemInTx(tx *gorm.DB, gc *groupContext, entityID int64, fields map[string]any, opts SetOptions, setFlag bool) (GroupedItem, error) {
	for name := range fields {
		if _, ok := gc.fields[name]; !ok {
			return GroupedItem{}, &SchemaError{EntityType: gc.et.Name, Attribute: name}
		}
	}

	item := GroupedItem{
		ID:     uuid.NewString(),
		Fields: map[string]any{},
	}
	slot, err := g.nextSlot(tx, gc.st, entityID, gc.familyID)
	if err != nil {
		return GroupedItem{}, err
	}
	item.Slot = slot

	if _, err = g.values.setInTx(tx, gc.st, gc.et, gc.groupDef, entityID, slot, item.ID, opts); err != nil {
		return GroupedItem{}, err
	}
	for _, name := range sortedKeys(fields) {
		if _, err = g.values.setInTx(tx, gc.st, gc.et, gc.fields[name], entityID, slot, fields[name], opts); err != nil {
			return GroupedItem{}, err
		}
		item.Fields[name] = fields[name]
	}

	if setFlag && gc.flagDef != nil {
		if _, err = g.values.setInTx(tx, gc.st, gc.et, gc.flagDef, entityID, 0, true, opts); err != nil {
			return GroupedItem{}, err
		}
	}
	return item, nil
}

// Items reconstructs the child records of one entity, ordered by slot.
// Slots without a group-id row are orphans and are skipped.
func (g *GroupedStore) Items(ctx context.Context, entityType string, entityID int64, spec GroupSpec) ([]GroupedItem, error) {
	bySlot := map[int]*GroupedItem{}
	err := g.values.eachStoredValue(ctx, entityType, entityID, GetQuery{Prefix: spec.Prefix}, func(def *schema.AttributeDefinition, row schema.AttributeValueRow) error {
		if def.Name == spec.MigratedFlagAttribute || row.SortOrder == 0 {
			return nil
		}
		value, err := models.Decode(models.ColumnsFromRow(row), models.ValueType(def.ValueType))
		if err != nil {
			return err
		}
		item := bySlot[row.SortOrder]
		if item == nil {
			item = &GroupedItem{Slot: row.SortOrder, Fields: map[string]any{}}
			bySlot[row.SortOrder] = item
		}
		if def.Name == spec.GroupAttribute {
			if s, ok := value.(string); ok {
				item.ID = s
			}
			return nil
		}
		item.Fields[def.Name] = value
		return nil
	})
	if err != nil {
		return nil, err
	}

	slots := make([]int, 0, len(bySlot))
	for slot := range bySlot {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	items := make([]GroupedItem, 0, len(bySlot))
	for _, slot := range slots {
		item := bySlot[slot]
		if item.ID == "" {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// UpdateItem rewrites the given fields of the item identified by groupID.
// Fields not mentioned keep their stored values.
func (g *GroupedStore) UpdateItem(ctx context.Context, entityType string, entityID int64, spec GroupSpec, groupID string, fields map[string]any, opts SetOptions) error {
	gc, err := g.resolve(entityType, spec)
	if err != nil {
		return err
	}
	for name := range fields {
		if _, ok := gc.fields[name]; !ok {
			return &SchemaError{EntityType: entityType, Attribute: name}
		}
	}

	err = g.values.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, ok, txErr := g.findSlot(tx, gc, entityID, groupID)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return &ValidationError{Attribute: spec.GroupAttribute, Reason: fmt.Sprintf("no item with id %q", groupID)}
		}
		for _, name := range sortedKeys(fields) {
			if _, txErr = g.values.setInTx(tx, gc.st, gc.et, gc.fields[name], entityID, slot, fields[name], opts); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return asEngineError("update grouped item", err)
	}
	return nil
}

// DeleteItem removes every attribute row of the item identified by groupID,
// including its group-id row, leaving other items untouched. The default is
// a soft delete that hides the slot from reads; Hard physically removes the
// rows. Returns the number of rows affected.
func (g *GroupedStore) DeleteItem(ctx context.Context, entityType string, entityID int64, spec GroupSpec, groupID string, opts DeleteOptions) (int64, error) {
	gc, err := g.resolve(entityType, spec)
	if err != nil {
		return 0, err
	}

	defByID := make(map[int64]*schema.AttributeDefinition, len(gc.fields)+1)
	for _, def := range gc.fields {
		defByID[def.ID] = def
	}
	defByID[gc.groupDef.ID] = gc.groupDef

	var count int64
	err = g.values.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, ok, txErr := g.findSlot(tx, gc, entityID, groupID)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return nil
		}

		var rows []schema.AttributeValueRow
		if err := gc.st.Scoped(tx, entityID).
			Where("attribute_definition_id IN ? AND sort_order = ? AND deleted_at IS NULL", gc.familyID, slot).
			Find(&rows).Error; err != nil {
			return fmt.Errorf("load item rows: %w", err)
		}

		for _, row := range rows {
			def := defByID[row.AttributeDefinitionID]
			if def == nil {
				continue
			}
			old, decErr := models.Decode(models.ColumnsFromRow(row), models.ValueType(def.ValueType))
			if decErr != nil {
				return decErr
			}
			if err := g.values.audit.Log(tx, AuditEntry{
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

		scope := gc.st.Scoped(tx, entityID).
			Where("attribute_definition_id IN ? AND sort_order = ? AND deleted_at IS NULL", gc.familyID, slot)
		if opts.Hard {
			res := scope.Delete(&schema.AttributeValueRow{})
			if res.Error != nil {
				return fmt.Errorf("hard delete item rows: %w", res.Error)
			}
			count = res.RowsAffected
			return nil
		}
		res := scope.Update("deleted_at", time.Now().UTC())
		if res.Error != nil {
			return fmt.Errorf("soft delete item rows: %w", res.Error)
		}
		count = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, asEngineError("delete grouped item", err)
	}
	return count, nil
}

// findSlot scans the group-id rows inside tx for the one holding groupID.
func (g *GroupedStore) findSlot(tx *gorm.DB, gc *groupContext, entityID int64, groupID string) (int, bool, error) {
	var rows []schema.AttributeValueRow
	if err := gc.st.Scoped(tx, entityID).
		Where("attribute_definition_id = ? AND string_value = ? AND deleted_at IS NULL", gc.groupDef.ID, groupID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return 0, false, fmt.Errorf("locate item slot: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].SortOrder, true, nil
}

// nextSlot allocates max(existing slot)+1 across the family's live rows.
func (g *GroupedStore) nextSlot(tx *gorm.DB, st valueStorage, entityID int64, ids []int64) (int, error) {
	var max sql.NullInt64
	err := st.Scoped(tx, entityID).
		Where("attribute_definition_id IN ? AND deleted_at IS NULL", ids).
		Select("MAX(sort_order)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("allocate slot: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// resolve loads everything a grouped operation needs from the registry
// before its transaction opens.
func (g *GroupedStore) resolve(entityType string, spec GroupSpec) (*groupContext, error) {
	et, err := g.values.registry.EntityType(entityType)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, &SchemaError{EntityType: entityType}
	}

	defsList, err := g.values.registry.DefinitionsFor(entityType, DefinitionQuery{Prefix: spec.Prefix, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	gc := &groupContext{
		et:     et,
		st:     storageFor(et),
		fields: make(map[string]*schema.AttributeDefinition, len(defsList)),
	}
	for i := range defsList {
		def := &defsList[i]
		switch def.Name {
		case spec.GroupAttribute:
			gc.groupDef = def
		case spec.MigratedFlagAttribute:
			gc.flagDef = def
		default:
			gc.fields[def.Name] = def
		}
	}
	if gc.groupDef == nil {
		return nil, &SchemaError{EntityType: entityType, Attribute: spec.GroupAttribute}
	}
	if spec.MigratedFlagAttribute != "" && gc.flagDef == nil {
		// The flag attribute may live outside the family prefix.
		flagDef, err := g.values.registry.Definition(entityType, spec.MigratedFlagAttribute)
		if err != nil {
			return nil, err
		}
		gc.flagDef = flagDef
	}

	gc.familyID = append(gc.familyID, gc.groupDef.ID)
	for _, def := range gc.fields {
		gc.familyID = append(gc.familyID, def.ID)
	}
	return gc, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
