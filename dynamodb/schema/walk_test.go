package schema_test

import (
	"errors"
	"testing"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSchema = schema.EntitySchema{
	Type:  "User",
	Table: "app",
	PrimaryKey: schema.PrimaryKey(
		schema.Attr("PK", val.Fmt("USER#{id}")),
		schema.Attr("SK", val.Fmt("PROFILE#{id}")),
	),
	Indexes: []schema.IndexSchema{
		schema.GSI("byEmail", true,
			schema.Attr("GSI1PK", val.Fmt("EMAIL#{email}")),
			schema.Attr("GSI1SK", val.Fmt("USER#{id}")),
		),
		schema.GSI("byStatus", false,
			schema.Attr("GSI2PK", val.Fmt("STATUS#{status}")),
			schema.Attr("GSI2SK", val.FromField("id")),
		),
	},
}

func TestWalk_PrimaryKey(t *testing.T) {
	t.Run("resolves every key", func(t *testing.T) {
		got, err := schema.Walk(userSchema.PrimaryKey, val.Attributes{"id": "42"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"PK": "USER#42", "SK": "PROFILE#42"}, got.Flat())
		assert.Equal(t, []string{"PK", "SK"}, got.Names())
	})
	t.Run("missing attribute is an error, never a partial key", func(t *testing.T) {
		got, err := schema.Walk(userSchema.PrimaryKey, val.Attributes{"name": "x"})
		require.Error(t, err)
		assert.Nil(t, got)
		var missing *val.MissingAttributeError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "id", missing.Attribute)
		assert.Contains(t, err.Error(), "PK")
	})
}

func TestWalk_Tree(t *testing.T) {
	tree := userSchema.Tree()

	t.Run("sparse index disappears", func(t *testing.T) {
		got, err := schema.Walk(tree, val.Attributes{"id": "42", "status": "active"})
		require.NoError(t, err)

		indexes := got.Child(schema.IndexesBranch)
		require.NotNil(t, indexes)
		assert.Nil(t, indexes.Child("byEmail"))
		assert.Equal(t, []string{"byStatus"}, indexes.Names())
		assert.Equal(t, map[string]any{"GSI2PK": "STATUS#active", "GSI2SK": "42"}, indexes.Child("byStatus").Flat())
	})
	t.Run("sparse index present when complete", func(t *testing.T) {
		got, err := schema.Walk(tree, val.Attributes{"id": "42", "email": "a@b.c", "status": "active"})
		require.NoError(t, err)
		byEmail := got.Child(schema.IndexesBranch).Child("byEmail")
		assert.Equal(t, map[string]any{"GSI1PK": "EMAIL#a@b.c", "GSI1SK": "USER#42"}, byEmail.Flat())
	})
	t.Run("non-sparse index fails the walk", func(t *testing.T) {
		_, err := schema.Walk(tree, val.Attributes{"id": "42"})
		var missing *val.MissingAttributeError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "status", missing.Attribute)
		assert.Contains(t, err.Error(), "indexes.byStatus.GSI2PK")
	})
	t.Run("deterministic", func(t *testing.T) {
		attrs := val.Attributes{"id": "42", "email": "a@b.c", "status": "active"}
		first, err := schema.Walk(tree, attrs)
		require.NoError(t, err)
		second, err := schema.Walk(tree, attrs)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestWalk_NestedSparseness(t *testing.T) {
	// The sparse flag of a nested branch is its own, not its parent's.
	root := schema.NewBranch(true).
		SetTemplate("a", val.Fmt("A#{a}")).
		Set("strict", schema.NewBranch(false).SetTemplate("b", val.Fmt("B#{b}"))).
		Set("loose", schema.NewBranch(true).SetTemplate("c", val.Fmt("C#{c}")))

	t.Run("strict child under sparse parent errors", func(t *testing.T) {
		_, err := schema.Walk(root, val.Attributes{"a": "1"})
		var missing *val.MissingAttributeError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "b", missing.Attribute)
	})
	t.Run("empty sparse child is pruned", func(t *testing.T) {
		got, err := schema.Walk(root, val.Attributes{"a": "1", "b": "2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "strict"}, got.Names())
		assert.Nil(t, got.Child("loose"))
	})
	t.Run("sparse parent drops everything when one of its leaves is absent", func(t *testing.T) {
		got, err := schema.Walk(root, val.Attributes{"b": "2", "c": "3"})
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
	})
}

func TestIndexSchema_Interpolations(t *testing.T) {
	idx, ok := userSchema.Index("byEmail")
	require.True(t, ok)
	assert.True(t, idx.Sparse())
	assert.Equal(t, map[string][]string{
		"GSI1PK": {"email"},
		"GSI1SK": {"id"},
	}, idx.Interpolations())

	_, ok = userSchema.Index("nope")
	assert.False(t, ok)
}
