package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

// AuditEntry is one attribute mutation to record.
type AuditEntry struct {
	EntityType    string
	EntityID      int64
	AttributeName string
	Action        string
	OldValue      *string
	NewValue      *string
	ActorID       *int64
	Reason        string
}

// AuditQuery filters an audit listing.
type AuditQuery struct {
	AttributeName string
	Since         time.Time
	Limit         int
}

// AuditTrail appends immutable mutation records. The audit table is a soft
// dependency: environments without it degrade to "no audit" rather than
// failing the primary write.
type AuditTrail struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewAuditTrail creates an audit trail. A nil logger falls back to
// slog.Default.
func NewAuditTrail(db *gorm.DB, logger *slog.Logger) *AuditTrail {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditTrail{db: db, logger: logger}
}

// TableExists reports whether the audit table is present.
func (a *AuditTrail) TableExists() bool {
	return a.db.Migrator().HasTable(&schema.AttributeAuditEntry{})
}

// Log appends one audit record inside the caller's transaction. When the
// audit table is absent the entry is dropped with a warning and the primary
// write proceeds. The existence probe runs on tx so it shares the
// transaction's connection.
func (a *AuditTrail) Log(tx *gorm.DB, e AuditEntry) error {
	if !tx.Migrator().HasTable(&schema.AttributeAuditEntry{}) {
		a.logger.Warn("audit table absent, skipping audit entry",
			"entityType", e.EntityType,
			"attribute", e.AttributeName,
			"action", e.Action,
		)
		return nil
	}

	rec := schema.AttributeAuditEntry{
		ID:            uuid.NewString(),
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		AttributeName: e.AttributeName,
		Action:        e.Action,
		OldValue:      e.OldValue,
		NewValue:      e.NewValue,
		ActorID:       e.ActorID,
		Reason:        e.Reason,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns audit records for one entity instance, newest first.
func (a *AuditTrail) List(entityType string, entityID int64, q AuditQuery) ([]schema.AttributeAuditEntry, error) {
	if !a.TableExists() {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := a.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit)
	if q.AttributeName != "" {
		query = query.Where("attribute_name = ?", q.AttributeName)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}

	var records []schema.AttributeAuditEntry
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return records, nil
}
