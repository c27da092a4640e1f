// Package indices is the registry of tables, entity schemas and
// auto-generated attributes that the resolve engine reads from.
//
// A Registry is populated once at startup and read-only afterwards:
//
//	reg := indices.New()
//	reg.AddTable(AppTable)
//	reg.AddEntity(UserSchema, autogen.Now("updatedAt", nil))
//
//	engine, err := resolve.New(resolve.Config{Registry: reg})
package indices

import (
	"fmt"
	"sync"

	"github.com/acksell/keyforge/dynamodb/autogen"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/jonboulle/clockwork"
)

// Registry holds table definitions and entity schemas by name.
type Registry struct {
	mu       sync.RWMutex
	tables   map[string]table.TableDefinition
	entities map[string]*schema.EntitySchema
	autogen  map[string][]autogen.Descriptor
	order    []string // entity types in registration order
}

func New() *Registry {
	return &Registry{
		tables:   make(map[string]table.TableDefinition),
		entities: make(map[string]*schema.EntitySchema),
		autogen:  make(map[string][]autogen.Descriptor),
	}
}

// AddTable registers a table definition. Tables must be added before the
// entities stored in them.
func (r *Registry) AddTable(t table.TableDefinition) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[t.Name]; exists {
		return fmt.Errorf("table %q already registered", t.Name)
	}
	r.tables[t.Name] = t
	return nil
}

// AddEntity registers an entity schema and the attributes generated for it on every transform.
// The schema is checked against its table's index signatures.
func (r *Registry) AddEntity(s *schema.EntitySchema, generated ...autogen.Descriptor) error {
	if s == nil {
		return fmt.Errorf("entity schema is nil")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[s.Table]
	if !ok {
		return fmt.Errorf("entity %q: table %q is not registered", s.Type, s.Table)
	}
	if err := s.ValidateAgainst(t); err != nil {
		return err
	}
	if _, exists := r.entities[s.Type]; exists {
		return fmt.Errorf("entity %q already registered", s.Type)
	}
	r.entities[s.Type] = s
	r.autogen[s.Type] = append([]autogen.Descriptor(nil), generated...)
	r.order = append(r.order, s.Type)
	return nil
}

// SchemaForEntityType returns the registered schema of an entity type.
func (r *Registry) SchemaForEntityType(entityType string) (*schema.EntitySchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entities[entityType]
	return s, ok
}

// AutoGeneratedAttributes returns the descriptors registered for an entity type.
func (r *Registry) AutoGeneratedAttributes(entityType string) []autogen.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autogen[entityType]
}

// TableIndexSignature looks up the key-name contract of a table's index.
func (r *Registry) TableIndexSignature(tableName, indexName string) (table.IndexSignature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[tableName]
	if !ok {
		return table.IndexSignature{}, false
	}
	return t.IndexSignature(indexName)
}

// Table returns a registered table definition.
func (r *Registry) Table(name string) (table.TableDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns all registered table definitions, in no particular order.
func (r *Registry) Tables() []table.TableDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]table.TableDefinition, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// EntityTypes returns registered entity types in registration order.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// FromDocument builds a registry from a declarative schema document.
// clock drives "now" attributes; nil means the real clock.
func FromDocument(doc *schema.Document, clock clockwork.Clock) (*Registry, error) {
	r := New()
	for _, t := range doc.Tables {
		def, err := t.TableDefinition()
		if err != nil {
			return nil, err
		}
		if err := r.AddTable(def); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Entities {
		s, err := e.EntitySchema()
		if err != nil {
			return nil, err
		}
		var generated []autogen.Descriptor
		for _, g := range e.AutoGenerated {
			d, err := autogen.FromKind(g.Name, g.Kind, g.Value, clock)
			if err != nil {
				return nil, fmt.Errorf("entity %q: %w", e.Type, err)
			}
			generated = append(generated, d)
		}
		if err := r.AddEntity(s, generated...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
