package val

import (
	"fmt"
	"regexp"
	"strings"
)

// SpecKind indicates the DynamoDB attribute type for a key spec.
type SpecKind string

const (
	SpecKindS SpecKind = "S" // String
	SpecKindN SpecKind = "N" // Number
	SpecKindB SpecKind = "B" // Binary
)

// PathSeparator separates the components of a nested field reference.
const PathSeparator = "."

// FmtSpec is a parsed key format pattern.
// Patterns use {field} syntax for field references:
//   - "PROFILE"           → constant string
//   - "{count}"           → single field reference
//   - "USER#{id}"         → composite with field
//   - "ORDER#{a}#{b}"     → multiple field references
//   - "{user.id}"         → nested field reference (dot notation)
type FmtSpec struct {
	raw   string
	parts []specPart
}

type specPart struct {
	literal bool     // true if this is a literal string, false if field reference
	value   string   // the literal value or field reference (e.g., "user.id")
	path    []string // split field reference, nil for literals
}

// fieldRefRegex matches {fieldName} or {nested.field.path} patterns (including empty braces for validation)
var fieldRefRegex = regexp.MustCompile(`\{([^}]*)\}`)

// Fmt creates a string key ValDef from a format pattern. Panics if the pattern is invalid.
//
//	val.Fmt("USER#{id}")        // composite string
//	val.Fmt("PROFILE")          // constant
//	val.Fmt("{createdAt}")      // single field reference
func Fmt(pattern string) ValDef {
	v, err := ParseFmt(pattern)
	if err != nil {
		panic(fmt.Sprintf("val.Fmt: %v", err))
	}
	return v
}

// ParseFmt is like Fmt but returns an error for invalid patterns.
func ParseFmt(pattern string) (ValDef, error) {
	s, err := parseFmtSpec(pattern)
	if err != nil {
		return ValDef{}, err
	}
	return ValDef{Format: &s}, nil
}

// FromField creates a ValDef that copies directly from a field on the entity.
// Supports dot notation for nested fields (e.g., "user.id").
func FromField(fieldPath string) ValDef {
	if err := validatePath(fieldPath); err != nil {
		panic(fmt.Sprintf("val.FromField: %v", err))
	}
	return ValDef{FromField: fieldPath}
}

// ParseField is like FromField but returns an error for invalid paths.
func ParseField(fieldPath string) (ValDef, error) {
	if fieldPath == "" {
		return ValDef{}, fmt.Errorf("field path cannot be empty")
	}
	if err := validatePath(fieldPath); err != nil {
		return ValDef{}, err
	}
	return ValDef{FromField: fieldPath}, nil
}

func parseFmtSpec(raw string) (FmtSpec, error) {
	if raw == "" {
		return FmtSpec{}, fmt.Errorf("pattern cannot be empty")
	}
	if strings.Count(raw, "{") != strings.Count(raw, "}") {
		return FmtSpec{}, fmt.Errorf("pattern %q has unbalanced braces", raw)
	}

	s := FmtSpec{raw: raw}
	lastEnd := 0
	for _, match := range fieldRefRegex.FindAllStringSubmatchIndex(raw, -1) {
		start, end := match[0], match[1]
		ref := raw[match[2]:match[3]]

		if start > lastEnd {
			s.parts = append(s.parts, specPart{literal: true, value: raw[lastEnd:start]})
		}
		if ref == "" {
			return FmtSpec{}, fmt.Errorf("empty field reference at position %d", start)
		}
		if err := validatePath(ref); err != nil {
			return FmtSpec{}, err
		}
		s.parts = append(s.parts, specPart{
			value: ref,
			path:  strings.Split(ref, PathSeparator),
		})
		lastEnd = end
	}
	if lastEnd < len(raw) {
		s.parts = append(s.parts, specPart{literal: true, value: raw[lastEnd:]})
	}
	return s, nil
}

func validatePath(ref string) error {
	for i, part := range strings.Split(ref, PathSeparator) {
		if part == "" {
			return fmt.Errorf("invalid field path %q: empty component at position %d", ref, i)
		}
	}
	return nil
}

// String returns the raw pattern string.
func (s FmtSpec) String() string {
	return s.raw
}

// IsConstant returns true if this spec has no field references.
func (s FmtSpec) IsConstant() bool {
	return len(s.parts) == 1 && s.parts[0].literal
}

// FieldRefs returns all field references in the pattern, in order.
// For "ORDER#{tenant}#{id}", returns ["tenant", "id"].
// For nested fields like "{user.id}", returns ["user.id"].
func (s FmtSpec) FieldRefs() []string {
	var refs []string
	for _, part := range s.parts {
		if !part.literal {
			refs = append(refs, part.value)
		}
	}
	return refs
}
