package schema

import (
	"github.com/acksell/keyforge/dynamodb/index/val"
)

// Node is a schema tree node: either a *Leaf holding a key template or a
// *Branch holding named child nodes.
type Node interface {
	schemaNode()
}

// Leaf is a key template.
type Leaf struct {
	Template val.ValDef
}

func (*Leaf) schemaNode() {}

// T wraps a template in a Leaf.
func T(def val.ValDef) *Leaf {
	return &Leaf{Template: def}
}

// Branch is a named sub-schema. Children keep their declaration order.
//
// Sparse applies to the leaves directly below this branch. Nested branches
// carry their own flag; it is never inherited.
type Branch struct {
	Sparse bool
	names  []string
	nodes  map[string]Node
}

func (*Branch) schemaNode() {}

// NewBranch creates an empty branch.
func NewBranch(sparse bool) *Branch {
	return &Branch{Sparse: sparse, nodes: make(map[string]Node)}
}

// Set adds or replaces a child. Replacing keeps the original position.
func (b *Branch) Set(name string, n Node) *Branch {
	if b.nodes == nil {
		b.nodes = make(map[string]Node)
	}
	if _, ok := b.nodes[name]; !ok {
		b.names = append(b.names, name)
	}
	b.nodes[name] = n
	return b
}

// SetTemplate is shorthand for Set(name, T(def)).
func (b *Branch) SetTemplate(name string, def val.ValDef) *Branch {
	return b.Set(name, T(def))
}

// Get returns the named child.
func (b *Branch) Get(name string) (Node, bool) {
	n, ok := b.nodes[name]
	return n, ok
}

// Names returns child names in declaration order.
func (b *Branch) Names() []string {
	return append([]string(nil), b.names...)
}

func (b *Branch) Len() int {
	return len(b.names)
}

// Leaves returns the templates directly below b, skipping nested branches.
func (b *Branch) Leaves() []NamedTemplate {
	var out []NamedTemplate
	for _, name := range b.names {
		if leaf, ok := b.nodes[name].(*Leaf); ok {
			out = append(out, NamedTemplate{Name: name, Template: leaf.Template})
		}
	}
	return out
}

// NamedTemplate pairs an attribute name with the template that produces it.
type NamedTemplate struct {
	Name     string
	Template val.ValDef
}

// Resolved is the result of walking a Branch: the same shape with templates
// replaced by values and absent entries removed.
type Resolved struct {
	names    []string
	values   map[string]any
	children map[string]*Resolved
}

func newResolved() *Resolved {
	return &Resolved{
		values:   make(map[string]any),
		children: make(map[string]*Resolved),
	}
}

// Names returns resolved entry names in schema order.
func (r *Resolved) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

func (r *Resolved) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Value returns a resolved leaf value.
func (r *Resolved) Value(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Child returns a resolved sub-tree, or nil if it was pruned.
func (r *Resolved) Child(name string) *Resolved {
	if r == nil {
		return nil
	}
	return r.children[name]
}

// Flat returns the leaf values at this level as a fresh map.
func (r *Resolved) Flat() map[string]any {
	out := make(map[string]any)
	if r == nil {
		return out
	}
	for _, name := range r.names {
		if v, ok := r.values[name]; ok {
			out[name] = v
		}
	}
	return out
}

func (r *Resolved) setValue(name string, v any) {
	r.names = append(r.names, name)
	r.values[name] = v
}

func (r *Resolved) setChild(name string, c *Resolved) {
	r.names = append(r.names, name)
	r.children[name] = c
}
