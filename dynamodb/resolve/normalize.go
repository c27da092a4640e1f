package resolve

import (
	"fmt"
	"log/slog"

	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
)

// Normalizer projects resolved indexes down to the attributes their table
// signatures name: partition and sort key for a GSI, sort key only for an LSI.
type Normalizer struct {
	Signatures SignatureSource
	// Lenient passes indexes without a matching signature through unchanged.
	Lenient bool
	Logger  *slog.Logger
}

// Normalize flattens the resolved "indexes" subtree of entity s into one
// attribute map. Indexes are visited in schema order; when two indexes share
// an attribute name the later one wins.
func (n Normalizer) Normalize(s *schema.EntitySchema, indexes *schema.Resolved) (map[string]any, error) {
	out := make(map[string]any)
	for _, name := range indexes.Names() {
		resolved := indexes.Child(name)
		if resolved == nil {
			continue
		}

		declared, _ := s.Index(name)
		sig, ok := n.Signatures.TableIndexSignature(s.Table, name)
		if !ok || sig.Type != declared.Type {
			mismatch := &UnknownIndexSignatureError{
				Table:        s.Table,
				Index:        name,
				DeclaredType: declared.Type,
				TableType:    sig.Type,
			}
			if !n.Lenient {
				return nil, mismatch
			}
			if n.Logger != nil {
				n.Logger.Warn("passing index through without signature", "entity", s.Type, "error", mismatch)
			}
			for k, v := range resolved.Flat() {
				out[k] = v
			}
			continue
		}

		projected, err := project(sig, resolved)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", name, err)
		}
		for k, v := range projected {
			out[k] = v
		}
	}
	return out, nil
}

// project picks the signature's key attributes, by name, out of a resolved index.
func project(sig table.IndexSignature, resolved *schema.Resolved) (map[string]any, error) {
	out := make(map[string]any, 2)
	for _, key := range sig.KeyNames() {
		v, ok := resolved.Value(key)
		if !ok {
			return nil, fmt.Errorf("%s key attribute %q was not resolved", sig.Type, key)
		}
		out[key] = v
	}
	return out, nil
}
