package val

import "fmt"

// MissingAttributeError is returned when a non-sparse key template references
// an attribute the entity does not have. A key cannot be partially built.
type MissingAttributeError struct {
	Attribute string
	Template  string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q required by key template %q", e.Attribute, e.Template)
}

// InvalidTemplateError is returned when a template cannot be applied to the
// entity, e.g. a nested path runs through a non-map value or a referenced
// value is not a scalar.
type InvalidTemplateError struct {
	Template string
	Path     string
	Reason   string
}

func (e *InvalidTemplateError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid key template %q: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("invalid key template %q at %q: %s", e.Template, e.Path, e.Reason)
}
