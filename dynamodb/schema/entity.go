package schema

import (
	"fmt"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/table"
)

// Names of the top-level branches built by EntitySchema.Tree.
const (
	PrimaryKeyBranch = "primaryKey"
	IndexesBranch    = "indexes"
)

// EntitySchema describes how one entity type maps onto its table.
//
//	var UserSchema = schema.EntitySchema{
//	    Type:  "User",
//	    Table: "app",
//	    PrimaryKey: schema.PrimaryKey(
//	        schema.Attr("PK", val.Fmt("USER#{id}")),
//	        schema.Attr("SK", val.Fmt("PROFILE#{id}")),
//	    ),
//	    Indexes: []schema.IndexSchema{
//	        schema.GSI("byEmail", true,
//	            schema.Attr("GSI1PK", val.Fmt("EMAIL#{email}")),
//	            schema.Attr("GSI1SK", val.Fmt("USER#{id}")),
//	        ),
//	    },
//	}
type EntitySchema struct {
	Type       string
	Table      string
	PrimaryKey *Branch
	Indexes    []IndexSchema
}

// IndexSchema is the key templates an entity declares for one secondary index.
type IndexSchema struct {
	Name string
	Type table.IndexType
	// Keys holds the index attribute templates. Keys.Sparse marks a sparse index.
	Keys *Branch
}

// Sparse reports whether entities missing source attributes are left out of the index.
func (i IndexSchema) Sparse() bool {
	return i.Keys != nil && i.Keys.Sparse
}

// Interpolations maps each index attribute name to the entity attributes its
// template references. It is derived from the templates, so every referenced
// attribute is always registered.
func (i IndexSchema) Interpolations() map[string][]string {
	out := make(map[string][]string)
	if i.Keys == nil {
		return out
	}
	for _, leaf := range i.Keys.Leaves() {
		out[leaf.Name] = leaf.Template.Refs()
	}
	return out
}

// Attr pairs a key attribute name with its template.
func Attr(name string, def val.ValDef) NamedTemplate {
	return NamedTemplate{Name: name, Template: def}
}

// PrimaryKey builds a non-sparse branch from key templates.
func PrimaryKey(keys ...NamedTemplate) *Branch {
	b := NewBranch(false)
	for _, k := range keys {
		b.SetTemplate(k.Name, k.Template)
	}
	return b
}

// GSI declares global secondary index templates.
func GSI(name string, sparse bool, keys ...NamedTemplate) IndexSchema {
	return newIndex(name, table.IndexTypeGSI, sparse, keys)
}

// LSI declares local secondary index templates.
func LSI(name string, sparse bool, keys ...NamedTemplate) IndexSchema {
	return newIndex(name, table.IndexTypeLSI, sparse, keys)
}

func newIndex(name string, typ table.IndexType, sparse bool, keys []NamedTemplate) IndexSchema {
	b := NewBranch(sparse)
	for _, k := range keys {
		b.SetTemplate(k.Name, k.Template)
	}
	return IndexSchema{Name: name, Type: typ, Keys: b}
}

// Index returns the named index schema.
func (s *EntitySchema) Index(name string) (IndexSchema, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}

// Tree builds the full schema tree walked for a transform:
//
//	primaryKey: {<key templates>}
//	indexes:    {<index name>: {<index key templates>}, ...}
func (s *EntitySchema) Tree() *Branch {
	indexes := NewBranch(false)
	for _, idx := range s.Indexes {
		indexes.Set(idx.Name, idx.Keys)
	}
	return NewBranch(false).
		Set(PrimaryKeyBranch, s.PrimaryKey).
		Set(IndexesBranch, indexes)
}

// Validate checks the schema is usable. It does not check the table.
func (s *EntitySchema) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("entity type is required")
	}
	if s.Table == "" {
		return fmt.Errorf("entity %q: table name is required", s.Type)
	}
	if s.PrimaryKey == nil || s.PrimaryKey.Len() == 0 {
		return fmt.Errorf("entity %q: primary key templates are required", s.Type)
	}
	if s.PrimaryKey.Sparse {
		return fmt.Errorf("entity %q: primary key cannot be sparse", s.Type)
	}
	for _, name := range s.PrimaryKey.Names() {
		n, _ := s.PrimaryKey.Get(name)
		leaf, ok := n.(*Leaf)
		if !ok {
			return fmt.Errorf("entity %q: primary key attribute %q must be a template", s.Type, name)
		}
		if !leaf.Template.HasValueSource() {
			return fmt.Errorf("entity %q: primary key attribute %q has no value source", s.Type, name)
		}
	}

	seen := make(map[string]bool)
	for _, idx := range s.Indexes {
		if idx.Name == "" {
			return fmt.Errorf("entity %q: index name is required", s.Type)
		}
		if seen[idx.Name] {
			return fmt.Errorf("entity %q: duplicate index %q", s.Type, idx.Name)
		}
		seen[idx.Name] = true
		if idx.Type != table.IndexTypeGSI && idx.Type != table.IndexTypeLSI {
			return fmt.Errorf("entity %q: index %q has unknown type %q", s.Type, idx.Name, idx.Type)
		}
		if idx.Keys == nil || idx.Keys.Len() == 0 {
			return fmt.Errorf("entity %q: index %q declares no key templates", s.Type, idx.Name)
		}
	}
	return nil
}

// ValidateAgainst checks that every index the entity declares exists on t
// with the same type, and that every key name in the signature has a template.
func (s *EntitySchema) ValidateAgainst(t table.TableDefinition) error {
	if t.Name != s.Table {
		return fmt.Errorf("entity %q belongs to table %q, not %q", s.Type, s.Table, t.Name)
	}
	for _, name := range t.KeyDefinitions.Names() {
		if _, ok := s.PrimaryKey.Get(name); !ok {
			return fmt.Errorf("entity %q: no template for primary key attribute %q", s.Type, name)
		}
	}
	for _, idx := range s.Indexes {
		sig, ok := t.IndexSignature(idx.Name)
		if !ok {
			return fmt.Errorf("entity %q: table %q has no index %q", s.Type, t.Name, idx.Name)
		}
		if sig.Type != idx.Type {
			return fmt.Errorf("entity %q: index %q is declared %s but table %q has it as %s", s.Type, idx.Name, idx.Type, t.Name, sig.Type)
		}
		for _, key := range sig.KeyNames() {
			if _, ok := idx.Keys.Get(key); !ok {
				return fmt.Errorf("entity %q: index %q has no template for key attribute %q", s.Type, idx.Name, key)
			}
		}
	}
	return nil
}
