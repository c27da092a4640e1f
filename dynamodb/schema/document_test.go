package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `
tables:
  - name: app
    partitionKey: {name: PK, kind: S}
    sortKey: {name: SK}
    gsis:
      - name: byEmail
        partitionKey: {name: GSI1PK}
        sortKey: {name: GSI1SK}
    lsis:
      - name: byCreated
        sortKey: {name: LSI1SK}
entities:
  - type: User
    table: app
    primaryKey:
      PK: "USER#{id}"
      SK: "PROFILE#{id}"
    indexes:
      - name: byEmail
        type: gsi
        sparse: true
        keys:
          GSI1PK: "EMAIL#{email}"
          GSI1SK: {field: id}
      - name: byCreated
        type: LSI
        keys:
          LSI1SK: "CREATED#{createdAt}"
          meta:
            _sparse: true
            kind: {const: user}
    autoGenerated:
      - {name: createdAt, kind: now}
`

func TestParse(t *testing.T) {
	doc, err := schema.Parse([]byte(testDocument))
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	require.Len(t, doc.Entities, 1)

	def, err := doc.Tables[0].TableDefinition()
	require.NoError(t, err)
	assert.Equal(t, "app", def.Name)
	assert.Equal(t, table.KeyKindS, def.KeyDefinitions.SortKey.Kind)
	sig, ok := def.IndexSignature("byEmail")
	require.True(t, ok)
	assert.Equal(t, table.IndexSignature{Type: table.IndexTypeGSI, PartitionKeyName: "GSI1PK", SortKeyName: "GSI1SK"}, sig)
	sig, ok = def.IndexSignature("byCreated")
	require.True(t, ok)
	assert.Equal(t, table.IndexSignature{Type: table.IndexTypeLSI, SortKeyName: "LSI1SK"}, sig)

	s, err := doc.Entities[0].EntitySchema()
	require.NoError(t, err)
	require.NoError(t, s.ValidateAgainst(def))
	assert.Equal(t, []string{"PK", "SK"}, s.PrimaryKey.Names())

	byEmail, ok := s.Index("byEmail")
	require.True(t, ok)
	assert.Equal(t, table.IndexTypeGSI, byEmail.Type)
	assert.True(t, byEmail.Sparse())
	assert.Equal(t, map[string][]string{"GSI1PK": {"email"}, "GSI1SK": {"id"}}, byEmail.Interpolations())

	byCreated, ok := s.Index("byCreated")
	require.True(t, ok)
	assert.False(t, byCreated.Sparse())
	meta, ok := byCreated.Keys.Get("meta")
	require.True(t, ok)
	metaBranch, ok := meta.(*schema.Branch)
	require.True(t, ok)
	assert.True(t, metaBranch.Sparse)

	resolved, err := schema.Walk(s.Tree(), val.Attributes{"id": "42", "createdAt": "2024"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"PK": "USER#42", "SK": "PROFILE#42"}, resolved.Child(schema.PrimaryKeyBranch).Flat())
	created := resolved.Child(schema.IndexesBranch).Child("byCreated")
	assert.Equal(t, map[string]any{"LSI1SK": "CREATED#2024"}, created.Flat())
	assert.Equal(t, map[string]any{"kind": "user"}, created.Child("meta").Flat())

	assert.Equal(t, []schema.AutoGenerated{{Name: "createdAt", Kind: "now"}}, doc.Entities[0].AutoGenerated)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "tables:\n  - name: app\n    bogus: 1\n"},
		{"not yaml", "tables: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestEntitySchema_FromDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad pattern", "entities:\n  - type: A\n    table: t\n    primaryKey:\n      PK: \"USER#{}\"\n"},
		{"bad field path", "entities:\n  - type: A\n    table: t\n    primaryKey:\n      PK: {field: \"a..b\"}\n"},
		{"primary key not a mapping", "entities:\n  - type: A\n    table: t\n    primaryKey: [a]\n"},
		{"no primary key", "entities:\n  - type: A\n    table: t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := schema.Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = doc.Entities[0].EntitySchema()
			require.Error(t, err)
		})
	}
}

func TestTable_TableDefinitionErrors(t *testing.T) {
	_, err := schema.Table{Name: "app", PartitionKey: schema.KeyDef{Name: "PK", Kind: "X"}}.TableDefinition()
	require.Error(t, err)

	_, err = schema.Table{Name: "app"}.TableDefinition()
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDocument), 0o644))

	doc, err := schema.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 1)

	_, err = schema.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
