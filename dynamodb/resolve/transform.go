package resolve

import (
	"github.com/acksell/keyforge/dynamodb/autogen"
	"github.com/acksell/keyforge/dynamodb/schema"
)

// TransformEntityToStorageAttributes computes the full attribute map an
// entity is written with.
//
// Auto-generated attributes are applied to a copy of entity, the schema tree
// is resolved against that copy, and the result is merged with later sources
// overriding earlier ones: entity fields, primary key, index keys. entity
// itself is never modified. Any resolution error aborts the transform.
func (e *Engine) TransformEntityToStorageAttributes(entityType string, entity map[string]any) (map[string]any, error) {
	s, err := e.schemaFor(entityType)
	if err != nil {
		return nil, err
	}

	working, err := autogen.Apply(entity, e.cfg.Registry.AutoGeneratedAttributes(entityType))
	if err != nil {
		return nil, wrapEntity(entityType, err)
	}

	resolved, err := schema.Walk(s.Tree(), working)
	if err != nil {
		return nil, wrapEntity(entityType, err)
	}

	primaryKey := resolved.Child(schema.PrimaryKeyBranch).Flat()
	indexes, err := e.normalizer().Normalize(s, resolved.Child(schema.IndexesBranch))
	if err != nil {
		return nil, wrapEntity(entityType, err)
	}

	out := make(map[string]any, len(working)+len(primaryKey)+len(indexes))
	for k, v := range working {
		out[k] = v
	}
	for k, v := range primaryKey {
		out[k] = v
	}
	for k, v := range indexes {
		out[k] = v
	}

	e.log.Debug("transformed entity",
		"entity", entityType,
		"table", s.Table,
		"attributes", len(out),
		"indexAttributes", len(indexes),
	)
	return out, nil
}

// Table returns the table an entity type is stored in.
func (e *Engine) Table(entityType string) (string, error) {
	s, err := e.schemaFor(entityType)
	if err != nil {
		return "", err
	}
	return s.Table, nil
}

// IndexMembership reports, per declared index, whether the attributes of a
// transformed item place it in that index.
func (e *Engine) IndexMembership(entityType string, item map[string]any) (map[string]bool, error) {
	s, err := e.schemaFor(entityType)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(s.Indexes))
	for _, idx := range s.Indexes {
		sig, ok := e.cfg.Registry.TableIndexSignature(s.Table, idx.Name)
		if !ok {
			return nil, wrapEntity(entityType, &UnknownIndexSignatureError{Table: s.Table, Index: idx.Name, DeclaredType: idx.Type})
		}
		member := true
		for _, key := range sig.KeyNames() {
			if _, ok := item[key]; !ok {
				member = false
				break
			}
		}
		out[idx.Name] = member
	}
	return out, nil
}

func (e *Engine) normalizer() Normalizer {
	return Normalizer{
		Signatures: e.cfg.Registry,
		Lenient:    e.cfg.LenientSignatures,
		Logger:     e.log,
	}
}
