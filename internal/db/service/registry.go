// Package service implements the attribute engine: definition registry,
// value store, grouped-record emulation, permission aggregation, audit
// trail, and the legacy-column migrator.
package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campushub/attribute-registry/internal/db/schema"
	"github.com/campushub/attribute-registry/pkg/cache"
)

// DefaultCacheTTL is the definition cache time-to-live when none is
// injected.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheSize bounds the number of entity types held in the cache.
const DefaultCacheSize = 256

// DefinitionQuery filters a definition listing.
type DefinitionQuery struct {
	Prefix     string
	ActiveOnly bool
}

// cachedSchema is one cache entry: the entity type record plus all of its
// non-deleted definitions, sorted by sort order.
type cachedSchema struct {
	entityType  *schema.EntityType
	definitions []schema.AttributeDefinition
}

// DefinitionRegistry loads and caches the attribute schema per entity type.
// The cache is the only shared mutable state in the engine; readers may see
// a schema up to one TTL stale, which is acceptable because definitions
// change rarely.
type DefinitionRegistry struct {
	db    *gorm.DB
	cache *cache.TTLCache[*cachedSchema]
}

// NewDefinitionRegistry creates a registry with the given cache TTL and
// size. Non-positive values fall back to the defaults.
func NewDefinitionRegistry(db *gorm.DB, ttl time.Duration, size int) *DefinitionRegistry {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &DefinitionRegistry{
		db:    db,
		cache: cache.NewTTLCache[*cachedSchema](size, ttl),
	}
}

// EntityType returns the entity type record by name, or nil when no live
// record exists.
func (r *DefinitionRegistry) EntityType(name string) (*schema.EntityType, error) {
	cached, err := r.load(name)
	if err != nil {
		return nil, err
	}
	return cached.entityType, nil
}

// DefinitionsFor returns the attribute definitions for an entity type,
// ordered by sort order. An unknown entity type yields an empty slice, not
// an error. ActiveOnly (the common case) excludes inactive definitions;
// soft-deleted definitions are never returned.
func (r *DefinitionRegistry) DefinitionsFor(entityType string, q DefinitionQuery) ([]schema.AttributeDefinition, error) {
	cached, err := r.load(entityType)
	if err != nil {
		return nil, err
	}
	if cached.entityType == nil {
		return nil, nil
	}

	out := make([]schema.AttributeDefinition, 0, len(cached.definitions))
	for _, def := range cached.definitions {
		if q.ActiveOnly && !def.IsActive {
			continue
		}
		if q.Prefix != "" && !strings.HasPrefix(def.Name, q.Prefix) {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// Definition resolves a single attribute definition by name. A missing
// entity type or attribute is a SchemaError: write paths must fail loudly.
func (r *DefinitionRegistry) Definition(entityType, name string) (*schema.AttributeDefinition, error) {
	cached, err := r.load(entityType)
	if err != nil {
		return nil, err
	}
	if cached.entityType == nil {
		return nil, &SchemaError{EntityType: entityType}
	}
	for i := range cached.definitions {
		if cached.definitions[i].Name == name && cached.definitions[i].IsActive {
			return &cached.definitions[i], nil
		}
	}
	return nil, &SchemaError{EntityType: entityType, Attribute: name}
}

// ClearCache drops every cached schema. Called administratively after
// definitions change.
func (r *DefinitionRegistry) ClearCache() {
	r.cache.InvalidateAll()
}

// load returns the cached schema for an entity type, querying the database
// on a miss. An absent entity type is cached too (as a nil record) so
// repeated lookups of unknown kinds stay cheap.
func (r *DefinitionRegistry) load(entityType string) (*cachedSchema, error) {
	if cached, ok := r.cache.Get(entityType); ok {
		return cached, nil
	}

	var et schema.EntityType
	err := r.db.Where("name = ? AND is_active = ?", entityType, true).First(&et).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			miss := &cachedSchema{}
			r.cache.Set(entityType, miss)
			return miss, nil
		}
		return nil, fmt.Errorf("load entity type %q: %w", entityType, err)
	}

	var defs []schema.AttributeDefinition
	if err := r.db.Where("entity_type_id = ?", et.ID).Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("load definitions for %q: %w", entityType, err)
	}
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].SortOrder != defs[j].SortOrder {
			return defs[i].SortOrder < defs[j].SortOrder
		}
		return defs[i].Name < defs[j].Name
	})

	cached := &cachedSchema{entityType: &et, definitions: defs}
	r.cache.Set(entityType, cached)
	return cached, nil
}
