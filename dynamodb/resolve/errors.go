package resolve

import (
	"fmt"
	"strings"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/table"
)

type (
	// MissingAttributeError is returned when a non-sparse key template
	// references an absent attribute.
	MissingAttributeError = val.MissingAttributeError
	// InvalidTemplateError is returned when a template cannot be applied to an entity.
	InvalidTemplateError = val.InvalidTemplateError
)

// UnknownIndexSignatureError is returned when an index declared by an entity
// has no signature on its table, or the signature has a different index type.
type UnknownIndexSignatureError struct {
	Table        string
	Index        string
	DeclaredType table.IndexType
	// TableType is empty when the table does not declare the index at all.
	TableType table.IndexType
}

func (e *UnknownIndexSignatureError) Error() string {
	if e.TableType == "" {
		return fmt.Sprintf("table %q has no signature for index %q", e.Table, e.Index)
	}
	return fmt.Sprintf("index %q is declared %s but table %q has it as %s", e.Index, e.DeclaredType, e.Table, e.TableType)
}

// UnknownEntityTypeError is returned for an entity type that is not registered.
type UnknownEntityTypeError struct {
	Type string
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("entity type %q is not registered", e.Type)
}

func wrapEntity(entityType string, err error) error {
	return fmt.Errorf("entity %q: %w", entityType, err)
}

// IncompleteIndexError is returned by ComputeAffectedIndexAttributes with
// RequireCompleteIndexes when an index touched by a change set references
// attributes that are neither changed nor known.
type IncompleteIndexError struct {
	Index   string
	Missing []string
}

func (e *IncompleteIndexError) Error() string {
	return fmt.Sprintf("index %q cannot be rewritten without attributes %s", e.Index, strings.Join(e.Missing, ", "))
}
