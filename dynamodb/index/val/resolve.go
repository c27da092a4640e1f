package val

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Resolve derives the key value described by def from attrs.
//
// If a referenced attribute is absent (missing or nil) and sparse is set, ok is
// false and err is nil: the key must be left out. If sparse is not set the same
// situation is a *MissingAttributeError.
//
// Format templates always produce a string. FromField and Const produce the
// value as stored; Func produces whatever the resolver returns.
func Resolve(def ValDef, attrs Attributes, sparse bool) (value any, ok bool, err error) {
	switch {
	case def.Format != nil:
		return resolveFormat(def, attrs, sparse)
	case def.FromField != "":
		v, found, err := lookup(attrs, def.FromField, def)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return absent(def.FromField, def, sparse)
		}
		if !IsScalar(v) {
			return nil, false, &InvalidTemplateError{Template: def.String(), Path: def.FromField, Reason: fmt.Sprintf("value of type %T is not a scalar", v)}
		}
		return v, true, nil
	case def.Const != nil:
		return def.Const.Value, true, nil
	case def.Func != nil:
		for _, ref := range def.Func.Refs {
			_, found, err := lookup(attrs, ref, def)
			if err != nil {
				return nil, false, err
			}
			if !found {
				return absent(ref, def, sparse)
			}
		}
		v, err := def.Func.Fn(attrs)
		if err != nil {
			return nil, false, fmt.Errorf("key template %s: %w", def, err)
		}
		if v == nil {
			return absent(strings.Join(def.Func.Refs, ","), def, sparse)
		}
		return v, true, nil
	default:
		return nil, false, &InvalidTemplateError{Template: def.String(), Reason: "no value source"}
	}
}

func resolveFormat(def ValDef, attrs Attributes, sparse bool) (any, bool, error) {
	var b strings.Builder
	for _, part := range def.Format.parts {
		if part.literal {
			b.WriteString(part.value)
			continue
		}
		v, found, err := lookup(attrs, part.value, def)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return absent(part.value, def, sparse)
		}
		s, ok := FormatScalar(v)
		if !ok {
			return nil, false, &InvalidTemplateError{Template: def.String(), Path: part.value, Reason: fmt.Sprintf("cannot interpolate value of type %T", v)}
		}
		b.WriteString(s)
	}
	return b.String(), true, nil
}

func absent(attr string, def ValDef, sparse bool) (any, bool, error) {
	if sparse {
		return nil, false, nil
	}
	return nil, false, &MissingAttributeError{Attribute: attr, Template: def.String()}
}

// lookup walks a dot separated path through nested maps.
// found is false if any component is missing or nil.
func lookup(attrs Attributes, ref string, def ValDef) (any, bool, error) {
	path := strings.Split(ref, PathSeparator)
	var cur any = attrs
	for i, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, &InvalidTemplateError{
				Template: def.String(),
				Path:     strings.Join(path[:i], PathSeparator),
				Reason:   fmt.Sprintf("cannot traverse value of type %T", cur),
			}
		}
		v, ok := m[key]
		if !ok || v == nil {
			return nil, false, nil
		}
		cur = v
	}
	return cur, true, nil
}

// IsScalar reports whether v can be interpolated into a key.
func IsScalar(v any) bool {
	_, ok := FormatScalar(v)
	return ok
}

// FormatScalar stringifies v the way DynamoDB represents scalars:
// numbers in plain decimal, booleans as true/false, times as RFC3339Nano and
// binary as its raw bytes. Maps, slices and structs are not scalars.
func FormatScalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return x.String(), true
	case nil:
		return "", false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		return "", false
	}
}

// MissingRefs returns the attributes def references that are absent from attrs.
func MissingRefs(def ValDef, attrs Attributes) []string {
	var missing []string
	for _, ref := range def.Refs() {
		if _, found, err := lookup(attrs, ref, def); err == nil && !found {
			missing = append(missing, ref)
		}
	}
	return missing
}
