package indices_test

import (
	"sync"
	"testing"
	"time"

	"github.com/acksell/keyforge/dynamodb/autogen"
	"github.com/acksell/keyforge/dynamodb/index/indices"
	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appTable = table.TableDefinition{
	Name: "app",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "PK", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "SK", Kind: table.KeyKindS},
	},
	GSIs: []table.GSIDefinition{
		{Name: "byEmail", KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "GSI1PK", Kind: table.KeyKindS},
		}},
	},
}

func userSchema() *schema.EntitySchema {
	return &schema.EntitySchema{
		Type:  "User",
		Table: "app",
		PrimaryKey: schema.PrimaryKey(
			schema.Attr("PK", val.Fmt("USER#{id}")),
			schema.Attr("SK", val.Fmt("PROFILE")),
		),
		Indexes: []schema.IndexSchema{
			schema.GSI("byEmail", true, schema.Attr("GSI1PK", val.Fmt("EMAIL#{email}"))),
		},
	}
}

func TestRegistry(t *testing.T) {
	reg := indices.New()
	require.NoError(t, reg.AddTable(appTable))
	require.NoError(t, reg.AddEntity(userSchema(), autogen.Const("type", "User")))

	s, ok := reg.SchemaForEntityType("User")
	require.True(t, ok)
	assert.Equal(t, "app", s.Table)

	_, ok = reg.SchemaForEntityType("Order")
	assert.False(t, ok)

	gen := reg.AutoGeneratedAttributes("User")
	require.Len(t, gen, 1)
	assert.Equal(t, "type", gen[0].Name)
	assert.Empty(t, reg.AutoGeneratedAttributes("Order"))

	sig, ok := reg.TableIndexSignature("app", "byEmail")
	require.True(t, ok)
	assert.Equal(t, table.IndexSignature{Type: table.IndexTypeGSI, PartitionKeyName: "GSI1PK"}, sig)

	_, ok = reg.TableIndexSignature("app", "nope")
	assert.False(t, ok)
	_, ok = reg.TableIndexSignature("nope", "byEmail")
	assert.False(t, ok)

	assert.Equal(t, []string{"User"}, reg.EntityTypes())
	assert.Len(t, reg.Tables(), 1)
	_, ok = reg.Table("app")
	assert.True(t, ok)
}

func TestRegistry_Errors(t *testing.T) {
	t.Run("entity before table", func(t *testing.T) {
		reg := indices.New()
		require.Error(t, reg.AddEntity(userSchema()))
	})
	t.Run("duplicate table", func(t *testing.T) {
		reg := indices.New()
		require.NoError(t, reg.AddTable(appTable))
		require.Error(t, reg.AddTable(appTable))
	})
	t.Run("duplicate entity", func(t *testing.T) {
		reg := indices.New()
		require.NoError(t, reg.AddTable(appTable))
		require.NoError(t, reg.AddEntity(userSchema()))
		require.Error(t, reg.AddEntity(userSchema()))
	})
	t.Run("invalid table", func(t *testing.T) {
		reg := indices.New()
		require.Error(t, reg.AddTable(table.TableDefinition{Name: "x"}))
	})
	t.Run("index missing on table", func(t *testing.T) {
		reg := indices.New()
		require.NoError(t, reg.AddTable(appTable))
		s := userSchema()
		s.Indexes = append(s.Indexes, schema.GSI("byStatus", false, schema.Attr("GSI2PK", val.Fmt("{status}"))))
		require.Error(t, reg.AddEntity(s))
	})
	t.Run("nil schema", func(t *testing.T) {
		require.Error(t, indices.New().AddEntity(nil))
	})
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	reg := indices.New()
	require.NoError(t, reg.AddTable(appTable))
	require.NoError(t, reg.AddEntity(userSchema()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := reg.SchemaForEntityType("User")
			assert.True(t, ok)
			_, ok = reg.TableIndexSignature("app", "byEmail")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestFromDocument(t *testing.T) {
	doc, err := schema.Parse([]byte(`
tables:
  - name: app
    partitionKey: {name: PK}
    sortKey: {name: SK}
    gsis:
      - name: byEmail
        partitionKey: {name: GSI1PK}
entities:
  - type: User
    table: app
    primaryKey:
      PK: "USER#{id}"
      SK: "PROFILE"
    indexes:
      - name: byEmail
        type: GSI
        sparse: true
        keys:
          GSI1PK: "EMAIL#{email}"
    autoGenerated:
      - {name: updatedAt, kind: now}
`))
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	reg, err := indices.FromDocument(doc, clock)
	require.NoError(t, err)

	gen := reg.AutoGeneratedAttributes("User")
	require.Len(t, gen, 1)
	v, err := gen[0].Generate()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", v)

	doc.Entities[0].AutoGenerated[0].Kind = "bogus"
	_, err = indices.FromDocument(doc, clock)
	require.Error(t, err)
}
