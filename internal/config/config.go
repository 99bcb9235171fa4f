// Package config loads the attribute-registry server configuration and the
// declarative attribute schema document.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campushub/attribute-registry/internal/db/service"
)

// Defaults applied when the config file or environment leaves a field unset.
const (
	DefaultListen     = ":8080"
	DefaultCacheTTL   = 5 * time.Minute
	DefaultCacheSize  = 256
	DefaultPermPrefix = "can_"
)

// DatabaseConfig selects the backing database.
type DatabaseConfig struct {
	// Type is one of sqlite, mysql, postgres.
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// CacheConfig tunes the definition registry cache.
type CacheConfig struct {
	TTL  time.Duration `yaml:"ttl"`
	Size int           `yaml:"size"`
}

// Config is the server configuration document.
type Config struct {
	Listen   string         `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	// SchemaPath points at the attribute schema document applied at startup.
	SchemaPath string `yaml:"schemaPath"`
	// PermissionPrefix narrows which Role attributes count as permissions.
	PermissionPrefix string `yaml:"permissionPrefix"`
	// WatchSchema re-applies the schema document when the file changes.
	WatchSchema bool `yaml:"watchSchema"`
}

// Load reads the YAML config at path, then applies environment overrides and
// defaults. An empty path yields a config built from environment and
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ATTR_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		c.Database.Type = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("ATTR_SCHEMA_PATH"); v != "" {
		c.SchemaPath = v
	}
	if v := os.Getenv("ATTR_PERMISSION_PREFIX"); v != "" {
		c.PermissionPrefix = v
	}
	if v := os.Getenv("ATTR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("ATTR_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.Size = n
		}
	}
	if v := os.Getenv("ATTR_WATCH_SCHEMA"); v != "" {
		c.WatchSchema, _ = strconv.ParseBool(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.PermissionPrefix == "" {
		c.PermissionPrefix = DefaultPermPrefix
	}
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown database type %q (expected sqlite, mysql, or postgres)", c.Database.Type)
	}
	if c.Database.Type != "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s", c.Database.Type)
	}
	return nil
}

// attributeDoc mirrors one attribute entry of the schema document.
type attributeDoc struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"displayName"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	MultiValued bool   `yaml:"multiValued"`
	Default     string `yaml:"default"`
	SortOrder   int    `yaml:"sortOrder"`
}

// entityTypeDoc mirrors one entity type entry of the schema document.
type entityTypeDoc struct {
	Name       string         `yaml:"name"`
	Table      string         `yaml:"table"`
	Storage    string         `yaml:"storage"`
	Attributes []attributeDoc `yaml:"attributes"`
}

// schemaDoc is the top-level attribute schema document.
type schemaDoc struct {
	EntityTypes []entityTypeDoc `yaml:"entityTypes"`
}

// LoadSchema reads the attribute schema document at path and converts it to
// provisioning specs.
func LoadSchema(path string) ([]service.EntityTypeSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	var doc schemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(doc.EntityTypes) == 0 {
		return nil, fmt.Errorf("schema %s declares no entity types", path)
	}

	specs := make([]service.EntityTypeSpec, 0, len(doc.EntityTypes))
	for _, et := range doc.EntityTypes {
		spec := service.EntityTypeSpec{
			Name:            et.Name,
			Table:           et.Table,
			StorageStrategy: et.Storage,
			Attributes:      make([]service.AttributeSpec, 0, len(et.Attributes)),
		}
		for i, attr := range et.Attributes {
			sortOrder := attr.SortOrder
			if sortOrder == 0 {
				sortOrder = i
			}
			spec.Attributes = append(spec.Attributes, service.AttributeSpec{
				Name:          attr.Name,
				DisplayName:   attr.DisplayName,
				Description:   attr.Description,
				ValueType:     attr.Type,
				IsRequired:    attr.Required,
				IsMultiValued: attr.MultiValued,
				DefaultValue:  attr.Default,
				SortOrder:     sortOrder,
			})
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
