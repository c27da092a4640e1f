package resolve

import (
	"maps"
	"slices"
	"strings"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/schema"
)

type affectedOptions struct {
	separator string
	known     map[string]any
	complete  bool
}

// AffectedOption configures ComputeAffectedIndexAttributes.
type AffectedOption func(*affectedOptions)

// WithSeparator sets the separator that marks nested keys in a change set.
// It only classifies change set keys: template references always use
// val.PathSeparator for nested paths, so a top-level attribute whose name
// contains val.PathSeparator cannot be referenced by a template.
func WithSeparator(sep string) AffectedOption {
	return func(o *affectedOptions) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// WithKnownAttributes supplies attributes of the stored entity that do not
// change, typically the ones its key is built from. They are available to
// templates but never mark an index attribute as affected.
func WithKnownAttributes(attrs map[string]any) AffectedOption {
	return func(o *affectedOptions) { o.known = attrs }
}

// RequireCompleteIndexes makes every index touched by the change set resolve
// in full: the result holds all the key attributes its table signature names,
// and an index that cannot be resolved fails with *IncompleteIndexError
// instead of being skipped.
func RequireCompleteIndexes() AffectedOption {
	return func(o *affectedOptions) { o.complete = true }
}

// ComputeAffectedIndexAttributes returns the index attributes that must be
// rewritten when the attributes in changed are updated.
//
// Nested keys (containing the separator) and non-scalar values are ignored:
// index templates interpolate top-level scalars only. Every index attribute
// whose template references a remaining key is re-resolved against those
// changes and keyed by its attribute name, so indexes sharing an attribute
// coalesce. A template that also needs an attribute outside the change set is
// skipped. The result is empty when nothing is affected.
func (e *Engine) ComputeAffectedIndexAttributes(entityType string, changed map[string]any, opts ...AffectedOption) (map[string]any, error) {
	s, err := e.schemaFor(entityType)
	if err != nil {
		return nil, err
	}

	o := affectedOptions{separator: e.cfg.Separator}
	for _, opt := range opts {
		opt(&o)
	}

	bag := make(map[string]any, len(o.known)+len(changed))
	maps.Copy(bag, o.known)
	relevant := make(map[string]bool, len(changed))
	for name, v := range changed {
		if strings.Contains(name, o.separator) {
			continue
		}
		if !val.IsScalar(v) {
			// The stored value is being replaced; the old one must not be used.
			delete(bag, name)
			continue
		}
		relevant[name] = true
		bag[name] = v
	}

	out := make(map[string]any)
	if len(relevant) == 0 {
		return out, nil
	}

	for _, idx := range s.Indexes {
		if idx.Keys == nil {
			continue
		}
		interpolations := idx.Interpolations()
		touched := false
		for _, leaf := range idx.Keys.Leaves() {
			if !referencesAny(interpolations[leaf.Name], relevant) {
				continue
			}
			touched = true
			if o.complete {
				break
			}
			v, ok, err := val.Resolve(leaf.Template, bag, true)
			if err != nil {
				return nil, wrapEntity(entityType, err)
			}
			if ok {
				out[leaf.Name] = v
			}
		}
		if touched && o.complete {
			attrs, err := e.resolveIndex(s, idx, bag)
			if err != nil {
				return nil, wrapEntity(entityType, err)
			}
			maps.Copy(out, attrs)
		}
	}

	e.log.Debug("computed affected index attributes",
		"entity", entityType,
		"changed", len(changed),
		"affected", len(out),
	)
	return out, nil
}

// resolveIndex resolves every template of idx and projects the result to
// the key attributes of its table signature.
func (e *Engine) resolveIndex(s *schema.EntitySchema, idx schema.IndexSchema, attrs map[string]any) (map[string]any, error) {
	var missing []string
	for _, leaf := range idx.Keys.Leaves() {
		for _, ref := range val.MissingRefs(leaf.Template, attrs) {
			if !slices.Contains(missing, ref) {
				missing = append(missing, ref)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteIndexError{Index: idx.Name, Missing: missing}
	}

	resolved, err := schema.Walk(schema.NewBranch(false).Set(idx.Name, idx.Keys), attrs)
	if err != nil {
		return nil, err
	}
	return e.normalizer().Normalize(s, resolved)
}

func referencesAny(refs []string, names map[string]bool) bool {
	for _, ref := range refs {
		if names[ref] {
			return true
		}
	}
	return false
}
