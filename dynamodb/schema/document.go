package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/table"
	"gopkg.in/yaml.v3"
)

// Document is the root of a declarative schema file:
//
//	tables:
//	  - name: app
//	    partitionKey: {name: PK, kind: S}
//	    sortKey: {name: SK, kind: S}
//	    gsis:
//	      - name: byEmail
//	        partitionKey: {name: GSI1PK}
//	        sortKey: {name: GSI1SK}
//	entities:
//	  - type: User
//	    table: app
//	    primaryKey:
//	      PK: "USER#{id}"
//	      SK: "PROFILE#{id}"
//	    indexes:
//	      - name: byEmail
//	        type: GSI
//	        sparse: true
//	        keys:
//	          GSI1PK: "EMAIL#{email}"
//	          GSI1SK: {field: id}
//	    autoGenerated:
//	      - {name: createdAt, kind: now}
//
// Key templates are format patterns, {field: path} or {const: value}. Any
// other mapping is a nested branch; `_sparse: true` marks it sparse.
type Document struct {
	Tables   []Table  `yaml:"tables"`
	Entities []Entity `yaml:"entities"`
}

// Table describes a DynamoDB table structure.
type Table struct {
	Name         string   `yaml:"name"`
	PartitionKey KeyDef   `yaml:"partitionKey"`
	SortKey      *KeyDef  `yaml:"sortKey,omitempty"`
	TTL          string   `yaml:"ttl,omitempty"`
	GSIs         []GSIDoc `yaml:"gsis,omitempty"`
	LSIs         []LSIDoc `yaml:"lsis,omitempty"`
}

// KeyDef describes a key attribute definition.
type KeyDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"` // "S", "N", or "B"
}

// GSIDoc describes a Global Secondary Index.
type GSIDoc struct {
	Name         string  `yaml:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty"`
}

// LSIDoc describes a Local Secondary Index.
type LSIDoc struct {
	Name    string `yaml:"name"`
	SortKey KeyDef `yaml:"sortKey"`
}

// Entity describes an entity type stored in a table.
type Entity struct {
	Type          string          `yaml:"type"`
	Table         string          `yaml:"table"`
	PrimaryKey    yaml.Node       `yaml:"primaryKey"`
	Indexes       []Index         `yaml:"indexes,omitempty"`
	AutoGenerated []AutoGenerated `yaml:"autoGenerated,omitempty"`
}

// Index describes the key templates of one secondary index.
type Index struct {
	Name   string    `yaml:"name"`
	Type   string    `yaml:"type"`
	Sparse bool      `yaml:"sparse,omitempty"`
	Keys   yaml.Node `yaml:"keys"`
}

// AutoGenerated describes an attribute whose value is generated on every transform.
// Kind is one of "uuid", "now" or "const".
type AutoGenerated struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Value string `yaml:"value,omitempty"`
}

// LoadFile reads and parses a schema document.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a schema document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &doc, nil
}

// TableDefinition converts the table description.
func (t Table) TableDefinition() (table.TableDefinition, error) {
	pk, err := t.PartitionKey.keyDef()
	if err != nil {
		return table.TableDefinition{}, fmt.Errorf("table %q partition key: %w", t.Name, err)
	}
	def := table.TableDefinition{
		Name:           t.Name,
		KeyDefinitions: table.PrimaryKeyDefinition{PartitionKey: pk},
		TimeToLiveKey:  t.TTL,
	}
	if t.SortKey != nil {
		if def.KeyDefinitions.SortKey, err = t.SortKey.keyDef(); err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %q sort key: %w", t.Name, err)
		}
	}
	for _, g := range t.GSIs {
		gsi := table.GSIDefinition{Name: g.Name}
		if gsi.KeyDefinitions.PartitionKey, err = g.PartitionKey.keyDef(); err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %q GSI %q: %w", t.Name, g.Name, err)
		}
		if g.SortKey != nil {
			if gsi.KeyDefinitions.SortKey, err = g.SortKey.keyDef(); err != nil {
				return table.TableDefinition{}, fmt.Errorf("table %q GSI %q: %w", t.Name, g.Name, err)
			}
		}
		def.GSIs = append(def.GSIs, gsi)
	}
	for _, l := range t.LSIs {
		sk, err := l.SortKey.keyDef()
		if err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %q LSI %q: %w", t.Name, l.Name, err)
		}
		def.LSIs = append(def.LSIs, table.LSIDefinition{Name: l.Name, SortKey: sk})
	}
	return def, def.Validate()
}

func (k KeyDef) keyDef() (table.KeyDef, error) {
	kind, err := table.ParseKeyKind(k.Kind)
	if err != nil {
		return table.KeyDef{}, err
	}
	return table.KeyDef{Name: k.Name, Kind: kind}, nil
}

// EntitySchema converts the entity description.
func (e Entity) EntitySchema() (*EntitySchema, error) {
	pk, err := decodeBranch(&e.PrimaryKey, false)
	if err != nil {
		return nil, fmt.Errorf("entity %q primary key: %w", e.Type, err)
	}
	s := &EntitySchema{Type: e.Type, Table: e.Table, PrimaryKey: pk}
	for _, idx := range e.Indexes {
		keys, err := decodeBranch(&idx.Keys, idx.Sparse)
		if err != nil {
			return nil, fmt.Errorf("entity %q index %q: %w", e.Type, idx.Name, err)
		}
		s.Indexes = append(s.Indexes, IndexSchema{
			Name: idx.Name,
			Type: table.IndexType(strings.ToUpper(idx.Type)),
			Keys: keys,
		})
	}
	return s, s.Validate()
}

const sparseKey = "_sparse"

func decodeBranch(n *yaml.Node, sparse bool) (*Branch, error) {
	if n.Kind == 0 {
		return NewBranch(sparse), nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of key templates", n.Line)
	}
	b := NewBranch(sparse)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, value := n.Content[i].Value, n.Content[i+1]
		if name == sparseKey {
			if err := value.Decode(&b.Sparse); err != nil {
				return nil, fmt.Errorf("line %d: %w", value.Line, err)
			}
			continue
		}
		node, err := decodeNode(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b.Set(name, node)
	}
	return b, nil
}

func decodeNode(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		def, err := val.ParseFmt(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return T(def), nil
	case yaml.MappingNode:
		if len(n.Content) == 2 {
			switch n.Content[0].Value {
			case "field":
				def, err := val.ParseField(n.Content[1].Value)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", n.Line, err)
				}
				return T(def), nil
			case "const":
				return T(val.String(n.Content[1].Value)), nil
			}
		}
		return decodeBranch(n, false)
	default:
		return nil, fmt.Errorf("line %d: expected a template or a mapping", n.Line)
	}
}
