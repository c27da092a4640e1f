// Package resolve computes the physical attributes an entity is stored with:
// its primary key plus the key attributes of every secondary index it belongs
// to. For partial updates it computes which index attributes a change set
// affects.
//
// The Engine is stateless apart from its read-only Registry and is safe for
// concurrent use.
package resolve

import (
	"errors"
	"log/slog"

	"github.com/acksell/keyforge/dynamodb/autogen"
	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
)

// DefaultSeparator marks nested attribute paths in change sets.
const DefaultSeparator = val.PathSeparator

// SchemaSource looks up the schema of an entity type.
type SchemaSource interface {
	SchemaForEntityType(entityType string) (*schema.EntitySchema, bool)
}

// SignatureSource looks up the key-name contract of a table's index.
type SignatureSource interface {
	TableIndexSignature(tableName, indexName string) (table.IndexSignature, bool)
}

// AutoGeneratedSource lists the attributes generated for an entity type on every transform.
type AutoGeneratedSource interface {
	AutoGeneratedAttributes(entityType string) []autogen.Descriptor
}

// Registry is everything the engine reads. *indices.Registry implements it.
type Registry interface {
	SchemaSource
	SignatureSource
	AutoGeneratedSource
}

type Config struct {
	Registry Registry
	Logger   *slog.Logger
	// Separator marks nested keys in change sets. Defaults to DefaultSeparator.
	Separator string
	// LenientSignatures passes an index with no matching table signature
	// through unchanged, logging a warning, instead of failing with
	// *UnknownIndexSignatureError.
	LenientSignatures bool
}

func (cfg *Config) Validate() error {
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	return nil
}

type Engine struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

func (e *Engine) schemaFor(entityType string) (*schema.EntitySchema, error) {
	s, ok := e.cfg.Registry.SchemaForEntityType(entityType)
	if !ok || s == nil {
		return nil, &UnknownEntityTypeError{Type: entityType}
	}
	return s, nil
}

// ResolvePrimaryKey resolves the primary key of an entity type from attrs.
// The result covers every primary key attribute; a missing source attribute
// is a *MissingAttributeError, never a partial key.
func (e *Engine) ResolvePrimaryKey(entityType string, attrs map[string]any) (map[string]any, error) {
	s, err := e.schemaFor(entityType)
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Walk(s.PrimaryKey, attrs)
	if err != nil {
		return nil, wrapEntity(entityType, err)
	}
	return resolved.Flat(), nil
}
