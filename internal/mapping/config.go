// Package mapping loads the migration mapping file and resolves legacy
// concepts and descriptions to canonical categories.
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/cashflow-migration/internal/gcs"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the mapping file looked up when none is given.
const DefaultFilename = "migration-mapping.json"

// ErrNotFound is returned with an empty Config when the mapping file does not exist.
var ErrNotFound = errors.New("mapping file not found")

// CategoryType is the kind of a canonical category.
type CategoryType string

const (
	TypeIncome  CategoryType = "income"
	TypeExpense CategoryType = "expense"
)

// Normalize lower-cases and trims the type.
func (t CategoryType) Normalize() CategoryType {
	return CategoryType(strings.ToLower(strings.TrimSpace(string(t))))
}

// Config is the content of the mapping file.
type Config struct {
	// Accounts maps a legacy account id to the canonical account name.
	Accounts map[string]string `json:"accounts" yaml:"accounts"`

	// Categories maps a raw or cleaned concept to a canonical category.
	Categories map[string]CategoryMapping `json:"categories" yaml:"categories"`

	// DescriptionRules are evaluated in order when no concept mapping applies.
	DescriptionRules []DescriptionRule `json:"descriptionRules" yaml:"descriptionRules"`
}

// CategoryMapping is the canonical category a concept or rule resolves to.
type CategoryMapping struct {
	Name string       `json:"name" yaml:"name"`
	Type CategoryType `json:"type,omitempty" yaml:"type,omitempty"`
	Skip bool         `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// DescriptionRule assigns Category to transactions whose description
// contains any of Keywords, compared case-insensitively.
type DescriptionRule struct {
	Keywords []string        `json:"keywords" yaml:"keywords"`
	Category CategoryMapping `json:"category" yaml:"category"`
}

// New returns an empty Config.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults replaces absent sections with empty ones.
func (c *Config) applyDefaults() {
	if c.Accounts == nil {
		c.Accounts = map[string]string{}
	}
	if c.Categories == nil {
		c.Categories = map[string]CategoryMapping{}
	}
	if c.DescriptionRules == nil {
		c.DescriptionRules = []DescriptionRule{}
	}
}

// AccountName returns the mapped name for a legacy account id, if any.
func (c *Config) AccountName(legacyID string) (string, bool) {
	name, ok := c.Accounts[legacyID]
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// Format identifies the encoding of a mapping file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension; JSON is the default.
func FormatFor(location string) Format {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a mapping document.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("Parse: decoding mapping YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("Parse: decoding mapping JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("Parse: unsupported mapping format %q", format)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads the mapping file at location (local path or gs:// URI).
// A missing file yields an empty Config together with ErrNotFound so the
// caller can warn and carry on; any other failure is returned as is.
func Load(ctx context.Context, svc gcs.StorageService, location string) (*Config, error) {
	data, err := gcs.ReadSource(ctx, svc, location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrObjectNotExist) {
			return New(), fmt.Errorf("Load: %s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("Load: reading %s: %w", location, err)
	}

	cfg, err := Parse(data, FormatFor(location))
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", location, err)
	}
	return cfg, nil
}
