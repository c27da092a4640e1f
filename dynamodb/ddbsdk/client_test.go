package ddbsdk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acksell/keyforge/dynamodb/ddbstore"
	"github.com/acksell/keyforge/dynamodb/index/indices"
	"github.com/acksell/keyforge/dynamodb/index/val"
	"github.com/acksell/keyforge/dynamodb/resolve"
	"github.com/acksell/keyforge/dynamodb/schema"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientTestTable = table.TableDefinition{
	Name: "app",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "PK", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "SK", Kind: table.KeyKindS},
	},
	TimeToLiveKey: "expiresAt",
	GSIs: []table.GSIDefinition{
		{Name: "byEmail", KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "GSI1PK", Kind: table.KeyKindS},
			SortKey:      table.KeyDef{Name: "GSI1SK", Kind: table.KeyKindS},
		}},
		{Name: "byStatus", KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "GSI2PK", Kind: table.KeyKindS},
			SortKey:      table.KeyDef{Name: "GSI2SK", Kind: table.KeyKindN},
		}},
	},
}

var userSchema = &schema.EntitySchema{
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
		schema.GSI("byStatus", true,
			schema.Attr("GSI2PK", val.Fmt("STATUS#{status}")),
			schema.Attr("GSI2SK", val.Fmt("{age}")),
		),
	},
}

type fixture struct {
	store  *ddbstore.Store
	client *Client
	m      *Marshaler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := indices.New()
	require.NoError(t, reg.AddTable(clientTestTable))
	require.NoError(t, reg.AddEntity(userSchema))
	engine, err := resolve.New(resolve.Config{Registry: reg})
	require.NoError(t, err)

	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true}, clientTestTable)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewMarshaler(engine, reg)
	return fixture{store: store, client: New(store, m, nil), m: m}
}

func (f fixture) query(t *testing.T, index, partition string) []map[string]types.AttributeValue {
	t.Helper()
	items, err := f.store.QueryIndex(context.Background(), clientTestTable.Name, index, partition)
	require.NoError(t, err)
	return items
}

func TestClient_PutAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.Put(ctx, "User", map[string]any{"id": "42", "email": "a@b.c", "status": "active", "age": 30})
	require.NoError(t, err)

	item, found, err := f.client.Get(ctx, "User", map[string]any{"id": "42"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "USER#42", item["PK"])
	assert.Equal(t, "PROFILE#42", item["SK"])
	assert.Equal(t, "EMAIL#a@b.c", item["GSI1PK"])
	assert.Equal(t, "STATUS#active", item["GSI2PK"])
	assert.Equal(t, float64(30), item["GSI2SK"], "numeric index key is stored as N")

	_, found, err = f.client.Get(ctx, "User", map[string]any{"id": "43"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_Put_SparseIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "1", "email": "a@b.c"}))
	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "2", "status": "active", "age": 20}))

	assert.Len(t, f.query(t, "byEmail", "EMAIL#a@b.c"), 1)
	statusItems := f.query(t, "byStatus", "STATUS#active")
	require.Len(t, statusItems, 1)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#2"}, statusItems[0]["PK"])
}

func TestClient_Put_IfNotExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := map[string]any{"id": "42"}

	require.NoError(t, f.client.Put(ctx, "User", user, IfNotExists()))
	err := f.client.Put(ctx, "User", user, IfNotExists())
	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(err, &ccf), "got %v", err)
}

func TestClient_Update_MovesIndexEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "42", "status": "active", "age": 30}))
	require.NoError(t, f.client.Update(ctx, "User", map[string]any{"id": "42"}, map[string]any{"status": "banned", "age": 30}, IfExists()))

	assert.Empty(t, f.query(t, "byStatus", "STATUS#active"))
	items := f.query(t, "byStatus", "STATUS#banned")
	require.Len(t, items, 1)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "banned"}, items[0]["status"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "30"}, items[0]["GSI2SK"])

	t.Run("missing item with IfExists", func(t *testing.T) {
		err := f.client.Update(ctx, "User", map[string]any{"id": "7"}, map[string]any{"name": "x"}, IfExists())
		var ccf *types.ConditionalCheckFailedException
		require.True(t, errors.As(err, &ccf), "got %v", err)
	})
}

func TestClient_Update_JoinsSparseIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "42"}))
	assert.Empty(t, f.query(t, "byEmail", "EMAIL#a@b.c"))

	require.NoError(t, f.client.Update(ctx, "User", map[string]any{"id": "42"}, map[string]any{"email": "a@b.c"}))

	items := f.query(t, "byEmail", "EMAIL#a@b.c")
	require.Len(t, items, 1)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#42"}, items[0]["GSI1SK"])
}

func TestClient_Update_IncompleteIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "42", "status": "active", "age": 30}))
	err := f.client.Update(ctx, "User", map[string]any{"id": "42"}, map[string]any{"status": "banned"})
	var incomplete *resolve.IncompleteIndexError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	assert.Equal(t, "byStatus", incomplete.Index)
	assert.Equal(t, []string{"age"}, incomplete.Missing)

	t.Run("known attributes passed with the key", func(t *testing.T) {
		err := f.client.Update(ctx, "User", map[string]any{"id": "42", "age": 30}, map[string]any{"status": "banned"})
		require.NoError(t, err)
		assert.Len(t, f.query(t, "byStatus", "STATUS#banned"), 1)
		assert.Empty(t, f.query(t, "byStatus", "STATUS#active"))
	})
}

func TestClient_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Put(ctx, "User", map[string]any{"id": "42", "email": "a@b.c"}))
	require.NoError(t, f.client.Delete(ctx, "User", map[string]any{"id": "42"}))

	_, found, err := f.client.Get(ctx, "User", map[string]any{"id": "42"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, f.query(t, "byEmail", "EMAIL#a@b.c"))

	err = f.client.Delete(ctx, "User", map[string]any{"id": "42"}, IfExists())
	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(err, &ccf), "got %v", err)
}

func TestMarshaler_MarshalPut(t *testing.T) {
	f := newFixture(t)

	t.Run("ttl", func(t *testing.T) {
		expiry := time.Unix(1700000000, 0)
		in, err := f.m.MarshalPut("User", map[string]any{"id": "1"}, WithTTL(expiry))
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1700000000"}, in.Item["expiresAt"])
		assert.Nil(t, in.ConditionExpression)
	})
	t.Run("non-numeric value for numeric key", func(t *testing.T) {
		_, err := f.m.MarshalPut("User", map[string]any{"id": "1", "status": "a", "age": "old"})
		require.Error(t, err)
	})
	t.Run("missing primary key attribute", func(t *testing.T) {
		_, err := f.m.MarshalPut("User", map[string]any{"email": "a@b.c"})
		var missing *resolve.MissingAttributeError
		require.True(t, errors.As(err, &missing))
	})
	t.Run("conflicting options", func(t *testing.T) {
		_, err := f.m.MarshalPut("User", map[string]any{"id": "1"}, IfExists(), IfNotExists())
		require.Error(t, err)
	})
	t.Run("unknown entity", func(t *testing.T) {
		_, err := f.m.MarshalPut("Order", map[string]any{"id": "1"})
		var unknown *resolve.UnknownEntityTypeError
		require.True(t, errors.As(err, &unknown))
	})
}

func TestMarshaler_MarshalUpdate(t *testing.T) {
	f := newFixture(t)
	key := map[string]any{"id": "42"}

	t.Run("sets changes and affected index attributes", func(t *testing.T) {
		in, err := f.m.MarshalUpdate("User", key, map[string]any{"status": "active", "age": 31})
		require.NoError(t, err)
		assert.Equal(t, "app", *in.TableName)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#42"}, in.Key["PK"])
		assert.Len(t, in.Key, 2)

		var names []string
		for _, name := range in.ExpressionAttributeNames {
			names = append(names, name)
		}
		assert.ElementsMatch(t, []string{"age", "status", "GSI2PK", "GSI2SK"}, names)
		assert.Contains(t, *in.UpdateExpression, "SET")
	})
	t.Run("no changes", func(t *testing.T) {
		_, err := f.m.MarshalUpdate("User", key, map[string]any{})
		require.Error(t, err)
	})
	t.Run("key attributes cannot change", func(t *testing.T) {
		_, err := f.m.MarshalUpdate("User", key, map[string]any{"PK": "x"})
		require.Error(t, err)
	})
	t.Run("key needs its source attributes", func(t *testing.T) {
		_, err := f.m.MarshalUpdate("User", map[string]any{}, map[string]any{"status": "x"})
		var missing *resolve.MissingAttributeError
		require.True(t, errors.As(err, &missing))
	})
}
