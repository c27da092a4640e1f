package val

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Attributes is an entity's attribute bag: attribute name to scalar or nested value.
// Nested values are map[string]any.
type Attributes = map[string]any

// ValDef defines how to derive a key value.
// Exactly one of Format, FromField, Const or Func should be set.
type ValDef struct {
	// Format specifies a format pattern for the key value, created via Fmt.
	Format *FmtSpec

	// FromField copies the value of the named attribute as-is.
	// Supports dot notation for nested fields (e.g., "user.id").
	FromField string

	// Const specifies a constant value for the key.
	// Created via String, Number or Bytes.
	Const *ConstValue

	// Func computes the value from the attributes, created via Func.
	Func *FuncSpec
}

// HasValueSource returns true if the ValDef has a value source defined.
func (v ValDef) HasValueSource() bool {
	return v.Format != nil || v.FromField != "" || v.Const != nil || v.Func != nil
}

// IsZero returns true if this is a zero-value (uninitialized) ValDef.
func (v ValDef) IsZero() bool {
	return !v.HasValueSource()
}

// Refs returns the attribute names the template reads, in order of appearance.
// Nested references are returned in dot notation.
func (v ValDef) Refs() []string {
	switch {
	case v.Format != nil:
		return v.Format.FieldRefs()
	case v.FromField != "":
		return []string{v.FromField}
	case v.Func != nil:
		return append([]string(nil), v.Func.Refs...)
	default:
		return nil
	}
}

// String describes the template for error messages.
func (v ValDef) String() string {
	switch {
	case v.Format != nil:
		return v.Format.String()
	case v.FromField != "":
		return "{" + v.FromField + "}"
	case v.Const != nil:
		return fmt.Sprint(v.Const.Value)
	case v.Func != nil:
		return "func(" + strings.Join(v.Func.Refs, ",") + ")"
	default:
		return "<empty>"
	}
}

// ConstValue represents a constant key value.
type ConstValue struct {
	Kind  SpecKind // DynamoDB attribute type (S, N, B)
	Value any      // string, numeric, or []byte
}

// String creates a ValDef with a constant string value.
func String(v string) ValDef {
	return ValDef{Const: &ConstValue{Kind: SpecKindS, Value: v}}
}

// Numeric is a constraint for all numeric types.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Number creates a ValDef with a constant numeric value.
func Number[T Numeric](v T) ValDef {
	return ValDef{Const: &ConstValue{Kind: SpecKindN, Value: v}}
}

// Bytes creates a ValDef with a constant binary value.
// The input should be a base64-encoded string.
func Bytes(b64 string) ValDef {
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		panic("val.Bytes: invalid base64 string: " + err.Error())
	}
	return ValDef{Const: &ConstValue{Kind: SpecKindB, Value: decoded}}
}

// FuncSpec is a precomputed resolver. Refs lists every attribute Fn reads;
// sparse resolution and change tracking rely on it being complete.
type FuncSpec struct {
	Refs []string
	Fn   func(Attributes) (any, error)
}

// Func creates a ValDef computed by fn. Returning (nil, nil) from fn means
// the value is absent.
//
//	val.Func(func(a val.Attributes) (any, error) {
//	    return strings.ToLower(a["email"].(string)), nil
//	}, "email")
func Func(fn func(Attributes) (any, error), refs ...string) ValDef {
	if fn == nil {
		panic("val.Func: nil resolver")
	}
	return ValDef{Func: &FuncSpec{Refs: refs, Fn: fn}}
}
