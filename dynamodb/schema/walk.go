package schema

import (
	"fmt"

	"github.com/acksell/keyforge/dynamodb/index/val"
)

// Walk resolves every template under b against attrs.
//
// Leaves are resolved in the sparse context of the branch that holds them.
// When a leaf of a sparse branch resolves to absent the whole branch is
// dropped, so an entity is either fully in a sparse index or not at all.
// A nested branch left with no entries is dropped too.
//
// The first resolution error aborts the walk; it is wrapped with the dotted
// path of the failing leaf.
func Walk(b *Branch, attrs val.Attributes) (*Resolved, error) {
	return walk(b, attrs, "")
}

func walk(b *Branch, attrs val.Attributes, path string) (*Resolved, error) {
	out := newResolved()
	if b == nil {
		return out, nil
	}
	for _, name := range b.names {
		p := join(path, name)
		switch n := b.nodes[name].(type) {
		case *Leaf:
			v, ok, err := val.Resolve(n.Template, attrs, b.Sparse)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			if !ok {
				// only reachable when b.Sparse is set
				return newResolved(), nil
			}
			out.setValue(name, v)
		case *Branch:
			child, err := walk(n, attrs, p)
			if err != nil {
				return nil, err
			}
			if child.Len() > 0 {
				out.setChild(name, child)
			}
		default:
			return nil, fmt.Errorf("%s: unsupported schema node %T", p, n)
		}
	}
	return out, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
