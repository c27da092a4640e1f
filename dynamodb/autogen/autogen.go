// Package autogen provides descriptors for attributes whose values are
// generated at write time, such as ids and timestamps.
package autogen

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Descriptor names an attribute and how to generate its value.
type Descriptor struct {
	Name     string
	Generate func() (any, error)
}

// Kinds accepted by FromKind.
const (
	KindUUID  = "uuid"
	KindNow   = "now"
	KindConst = "const"
)

// UUID generates a random (version 4) UUID string.
func UUID(name string) Descriptor {
	return Descriptor{
		Name: name,
		Generate: func() (any, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return nil, fmt.Errorf("generate uuid: %w", err)
			}
			return id.String(), nil
		},
	}
}

// Now generates the current time of clock in RFC3339Nano, UTC.
func Now(name string, clock clockwork.Clock) Descriptor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Descriptor{
		Name: name,
		Generate: func() (any, error) {
			return clock.Now().UTC().Format(time.RFC3339Nano), nil
		},
	}
}

// Const always generates v.
func Const(name string, v any) Descriptor {
	return Descriptor{
		Name:     name,
		Generate: func() (any, error) { return v, nil },
	}
}

// FromKind builds a descriptor from its declarative form.
func FromKind(name, kind, value string, clock clockwork.Clock) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, fmt.Errorf("auto-generated attribute name is required")
	}
	switch kind {
	case KindUUID:
		return UUID(name), nil
	case KindNow:
		return Now(name, clock), nil
	case KindConst:
		return Const(name, value), nil
	default:
		return Descriptor{}, fmt.Errorf("attribute %q: unknown auto-generated kind %q", name, kind)
	}
}

// Apply returns a copy of attrs with every descriptor's value set.
// attrs itself is not modified.
func Apply(attrs map[string]any, descs []Descriptor) (map[string]any, error) {
	out := make(map[string]any, len(attrs)+len(descs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, d := range descs {
		v, err := d.Generate()
		if err != nil {
			return nil, fmt.Errorf("auto-generate %q: %w", d.Name, err)
		}
		out[d.Name] = v
	}
	return out, nil
}
