package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Legacy inline column formats.
const (
	LegacyFormatJSON = "json"
	LegacyFormatCSV  = "csv"
)

// LegacyListSource describes a legacy inline column to migrate: a JSON
// array or comma-separated string previously stored directly on the
// entity's own row, to be re-expressed as grouped attribute records.
type LegacyListSource struct {
	EntityType string
	Table      string
	IDColumn   string
	Column     string
	Format     string
	Spec       GroupSpec
	// ScalarField names the attribute a bare CSV token (or JSON string
	// element) maps to.
	ScalarField string
	// FieldMap renames legacy JSON object keys to attribute names. Keys
	// not present in the map are used as-is.
	FieldMap map[string]string
}

// MigrationSummary reports a MigrateAll run.
type MigrationSummary struct {
	Entities int `json:"entities"`
	Items    int `json:"items"`
	Skipped  int `json:"skipped"`
}

// VerifyResult compares the legacy source against the attribute read path.
type VerifyResult struct {
	LegacyCount int  `json:"legacyCount"`
	StoredCount int  `json:"storedCount"`
	Match       bool `json:"match"`
}

// Migrator performs the one-time migration of legacy inline list columns
// into grouped attribute storage. Entities already carrying the migrated
// flag are skipped, so re-runs are safe.
type Migrator struct {
	values  *ValueStore
	grouped *GroupedStore
}

// NewMigrator creates the migration utility.
func NewMigrator(values *ValueStore, grouped *GroupedStore) *Migrator {
	return &Migrator{values: values, grouped: grouped}
}

// MigrateEntity migrates one entity's legacy column. Returns the number of
// items written; zero with no error when the column is empty or the entity
// is already migrated. All items and the migrated flag are written in one
// transaction, the flag last, so a failure on any item leaves the entity
// unflagged and fully re-runnable.
func (m *Migrator) MigrateEntity(ctx context.Context, src LegacyListSource, entityID int64) (int, error) {
	migrated, err := m.isMigrated(ctx, src, entityID)
	if err != nil {
		return 0, err
	}
	if migrated {
		return 0, nil
	}

	raw, err := m.readLegacyColumn(ctx, src, entityID)
	if err != nil {
		return 0, err
	}
	items, err := parseLegacyList(raw, src)
	if err != nil {
		return 0, &ValidationError{Attribute: src.Column, Reason: err.Error()}
	}
	if len(items) == 0 {
		return 0, nil
	}

	gc, err := m.grouped.resolve(src.EntityType, src.Spec)
	if err != nil {
		return 0, err
	}

	opts := SetOptions{Reason: "legacy column migration"}
	err = m.values.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fields := range items {
			if _, txErr := m.grouped.addItemInTx(tx, gc, entityID, fields, opts, false); txErr != nil {
				return txErr
			}
		}
		if gc.flagDef != nil {
			if _, txErr := m.values.setInTx(tx, gc.st, gc.et, gc.flagDef, entityID, 0, true, opts); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return 0, asEngineError("migrate legacy items", err)
	}
	return len(items), nil
}

// MigrateAll migrates every entity whose legacy column is populated.
func (m *Migrator) MigrateAll(ctx context.Context, src LegacyListSource) (MigrationSummary, error) {
	var summary MigrationSummary

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL AND %s != ''",
		src.IDColumn, src.Table, src.Column, src.Column)
	var ids []int64
	if err := m.values.db.WithContext(ctx).Raw(query).Scan(&ids).Error; err != nil {
		return summary, fmt.Errorf("list entities with legacy %s: %w", src.Column, err)
	}

	for _, id := range ids {
		n, err := m.MigrateEntity(ctx, src, id)
		if err != nil {
			return summary, fmt.Errorf("migrate %s %d: %w", src.EntityType, id, err)
		}
		if n == 0 {
			summary.Skipped++
			continue
		}
		summary.Entities++
		summary.Items += n
	}
	return summary, nil
}

// Verify compares the legacy item count against the grouped read path for
// one entity. The legacy column is only safe to drop when every entity
// verifies.
func (m *Migrator) Verify(ctx context.Context, src LegacyListSource, entityID int64) (VerifyResult, error) {
	raw, err := m.readLegacyColumn(ctx, src, entityID)
	if err != nil {
		return VerifyResult{}, err
	}
	legacy, err := parseLegacyList(raw, src)
	if err != nil {
		return VerifyResult{}, &ValidationError{Attribute: src.Column, Reason: err.Error()}
	}

	items, err := m.grouped.Items(ctx, src.EntityType, entityID, src.Spec)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{
		LegacyCount: len(legacy),
		StoredCount: len(items),
	}
	result.Match = result.LegacyCount == result.StoredCount
	return result, nil
}

func (m *Migrator) isMigrated(ctx context.Context, src LegacyListSource, entityID int64) (bool, error) {
	if src.Spec.MigratedFlagAttribute == "" {
		return false, nil
	}
	attrs, err := m.values.GetAttributes(ctx, src.EntityType, entityID, GetQuery{Names: []string{src.Spec.MigratedFlagAttribute}})
	if err != nil {
		return false, err
	}
	b, ok := attrs[src.Spec.MigratedFlagAttribute].(bool)
	return ok && b, nil
}

func (m *Migrator) readLegacyColumn(ctx context.Context, src LegacyListSource, entityID int64) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", src.Column, src.Table, src.IDColumn)
	var raw sql.NullString
	if err := m.values.db.WithContext(ctx).Raw(query, entityID).Scan(&raw).Error; err != nil {
		return "", fmt.Errorf("read legacy column %s.%s: %w", src.Table, src.Column, err)
	}
	if !raw.Valid {
		return "", nil
	}
	return raw.String, nil
}

// parseLegacyList converts the raw column text into per-item field maps.
func parseLegacyList(raw string, src LegacyListSource) ([]map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch src.Format {
	case LegacyFormatJSON:
		var elements []any
		if err := json.Unmarshal([]byte(raw), &elements); err != nil {
			return nil, fmt.Errorf("legacy column is not a JSON array: %w", err)
		}
		items := make([]map[string]any, 0, len(elements))
		for _, el := range elements {
			switch tv := el.(type) {
			case map[string]any:
				fields := make(map[string]any, len(tv))
				for k, v := range tv {
					name := k
					if mapped, ok := src.FieldMap[k]; ok {
						name = mapped
					}
					fields[name] = v
				}
				items = append(items, fields)
			case string:
				if src.ScalarField == "" {
					return nil, fmt.Errorf("string element %q but no scalar field configured", tv)
				}
				items = append(items, map[string]any{src.ScalarField: tv})
			default:
				return nil, fmt.Errorf("unsupported legacy element type %T", el)
			}
		}
		return items, nil

	case LegacyFormatCSV:
		if src.ScalarField == "" {
			return nil, fmt.Errorf("csv format requires a scalar field")
		}
		var items []map[string]any
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			items = append(items, map[string]any{src.ScalarField: token})
		}
		return items, nil
	}

	return nil, fmt.Errorf("unknown legacy format %q", src.Format)
}
