package domains

import (
	"context"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// FacilityEntityType is the entity type name facility attributes live under.
const FacilityEntityType = "Facility"

// EquipmentGroup declares the equipment item family on facilities. Each
// equipment item is a grouped record of name, type and quantity attributes
// sharing one storage slot.
var EquipmentGroup = service.GroupSpec{
	Prefix:                "equipment_",
	GroupAttribute:        "equipment_group_id",
	MigratedFlagAttribute: "equipment_migrated",
}

// EquipmentLegacySource describes the legacy inline JSON column equipment
// lists were migrated from.
var EquipmentLegacySource = service.LegacyListSource{
	EntityType: FacilityEntityType,
	Table:      "facilities",
	IDColumn:   "id",
	Column:     "equipment_list",
	Format:     service.LegacyFormatJSON,
	Spec:       EquipmentGroup,
	FieldMap: map[string]string{
		"name":     "equipment_name",
		"type":     "equipment_type",
		"quantity": "equipment_quantity",
	},
}

// FacilityService manages facility attributes and the equipment inventory.
type FacilityService struct {
	values   *service.ValueStore
	grouped  *service.GroupedStore
	migrator *service.Migrator
}

// NewFacilityService creates the facility facade.
func NewFacilityService(values *service.ValueStore, grouped *service.GroupedStore, migrator *service.Migrator) *FacilityService {
	return &FacilityService{values: values, grouped: grouped, migrator: migrator}
}

// Equipment lists a facility's equipment items.
func (s *FacilityService) Equipment(ctx context.Context, facilityID int64) ([]service.GroupedItem, error) {
	return s.grouped.Items(ctx, FacilityEntityType, facilityID, EquipmentGroup)
}

// AddEquipment records one equipment item.
func (s *FacilityService) AddEquipment(ctx context.Context, facilityID int64, fields map[string]any, opts service.SetOptions) (service.GroupedItem, error) {
	return s.grouped.AddItem(ctx, FacilityEntityType, facilityID, EquipmentGroup, fields, opts)
}

// UpdateEquipment rewrites fields of one equipment item.
func (s *FacilityService) UpdateEquipment(ctx context.Context, facilityID int64, itemID string, fields map[string]any, opts service.SetOptions) error {
	return s.grouped.UpdateItem(ctx, FacilityEntityType, facilityID, EquipmentGroup, itemID, fields, opts)
}

// RemoveEquipment deletes one equipment item.
func (s *FacilityService) RemoveEquipment(ctx context.Context, facilityID int64, itemID string, opts service.DeleteOptions) (int64, error) {
	return s.grouped.DeleteItem(ctx, FacilityEntityType, facilityID, EquipmentGroup, itemID, opts)
}

// MigrateEquipment converts one facility's legacy inline equipment column
// into grouped records. Already-migrated facilities are skipped.
func (s *FacilityService) MigrateEquipment(ctx context.Context, facilityID int64) (int, error) {
	return s.migrator.MigrateEntity(ctx, EquipmentLegacySource, facilityID)
}

// MigrateAllEquipment migrates every facility with a populated legacy
// column.
func (s *FacilityService) MigrateAllEquipment(ctx context.Context) (service.MigrationSummary, error) {
	return s.migrator.MigrateAll(ctx, EquipmentLegacySource)
}

// VerifyEquipment compares a facility's legacy column against the grouped
// read path.
func (s *FacilityService) VerifyEquipment(ctx context.Context, facilityID int64) (service.VerifyResult, error) {
	return s.migrator.Verify(ctx, EquipmentLegacySource, facilityID)
}
