package ddbsdk

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/acksell/keyforge/dynamodb/resolve"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Resolver computes the physical attributes of entities. *resolve.Engine implements it.
type Resolver interface {
	Table(entityType string) (string, error)
	ResolvePrimaryKey(entityType string, attrs map[string]any) (map[string]any, error)
	TransformEntityToStorageAttributes(entityType string, entity map[string]any) (map[string]any, error)
	ComputeAffectedIndexAttributes(entityType string, changed map[string]any, opts ...resolve.AffectedOption) (map[string]any, error)
}

// TableSource looks up table definitions. *indices.Registry implements it.
type TableSource interface {
	Table(name string) (table.TableDefinition, bool)
}

var _ Resolver = (*resolve.Engine)(nil)

// Marshaler turns entities into DynamoDB requests. Key attributes are
// written with the kinds their table declares.
type Marshaler struct {
	resolver Resolver
	tables   TableSource
}

func NewMarshaler(resolver Resolver, tables TableSource) *Marshaler {
	return &Marshaler{resolver: resolver, tables: tables}
}

type writeOptions struct {
	ifNotExists bool
	ifExists    bool
	ttlExpiry   *time.Time
}

// WriteOption configures a put, update or delete.
type WriteOption func(*writeOptions)

// IfNotExists makes a put fail if the item already exists.
func IfNotExists() WriteOption {
	return func(o *writeOptions) { o.ifNotExists = true }
}

// IfExists makes a write fail if the item does not exist yet.
func IfExists() WriteOption {
	return func(o *writeOptions) { o.ifExists = true }
}

func applyOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (m *Marshaler) tableFor(entityType string) (table.TableDefinition, error) {
	name, err := m.resolver.Table(entityType)
	if err != nil {
		return table.TableDefinition{}, err
	}
	td, ok := m.tables.Table(name)
	if !ok {
		return table.TableDefinition{}, fmt.Errorf("table %q is not defined", name)
	}
	return td, nil
}

// MarshalPut builds the request that writes entity with its storage attributes.
func (m *Marshaler) MarshalPut(entityType string, entity map[string]any, opts ...WriteOption) (*dynamodbv2.PutItemInput, error) {
	o := applyOptions(opts)
	td, err := m.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	attrs, err := m.resolver.TransformEntityToStorageAttributes(entityType, entity)
	if err != nil {
		return nil, err
	}
	attrs, err = coerceKeys(td, attrs)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err)
	}
	ttlName, unix, hasTTL, err := o.expiry(td)
	if err != nil {
		return nil, err
	}
	if hasTTL {
		item[ttlName] = ttlDDB(unix)
	}

	cond, err := existenceCondition(td, o)
	if err != nil {
		return nil, err
	}
	var exp expression.Expression
	if cond.IsSet() {
		exp, err = expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}
	return &dynamodbv2.PutItemInput{
		TableName:                 aws.String(td.Name),
		Item:                      item,
		ConditionExpression:       exp.Condition(),
		ExpressionAttributeNames:  exp.Names(),
		ExpressionAttributeValues: exp.Values(),
	}, nil
}

// MarshalUpdate builds a partial update. key holds the entity attributes the
// primary key templates need. The SET clause covers every changed attribute
// plus all key attributes of each index the change touches, resolved from key
// and changed together. If such an index needs an attribute found in neither,
// the update fails with *resolve.IncompleteIndexError. Nested attributes use
// dotted names, e.g. "address.city".
func (m *Marshaler) MarshalUpdate(entityType string, key, changed map[string]any, opts ...WriteOption) (*dynamodbv2.UpdateItemInput, error) {
	o := applyOptions(opts)
	if len(changed) == 0 {
		return nil, fmt.Errorf("update of %s has no changed attributes", entityType)
	}
	td, err := m.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	keyAttrs, err := m.keyFor(td, entityType, key)
	if err != nil {
		return nil, err
	}
	for _, name := range td.KeyDefinitions.Names() {
		if _, ok := changed[name]; ok {
			return nil, fmt.Errorf("cannot update attribute %q: it is part of the key", name)
		}
	}

	affected, err := m.resolver.ComputeAffectedIndexAttributes(entityType, changed,
		resolve.WithKnownAttributes(key), resolve.RequireCompleteIndexes())
	if err != nil {
		return nil, err
	}
	affected, err = coerceKeys(td, affected)
	if err != nil {
		return nil, err
	}

	sets := make(map[string]any, len(changed)+len(affected)+1)
	maps.Copy(sets, changed)
	maps.Copy(sets, affected)
	ttlName, unix, hasTTL, err := o.expiry(td)
	if err != nil {
		return nil, err
	}
	if hasTTL {
		sets[ttlName] = unix
	}

	var update expression.UpdateBuilder
	for _, name := range slices.Sorted(maps.Keys(sets)) {
		update = update.Set(expression.Name(name), expression.Value(sets[name]))
	}
	b := expression.NewBuilder().WithUpdate(update)
	cond, err := existenceCondition(td, o)
	if err != nil {
		return nil, err
	}
	if cond.IsSet() {
		b = b.WithCondition(cond)
	}
	exp, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return &dynamodbv2.UpdateItemInput{
		TableName:                 aws.String(td.Name),
		Key:                       keyAttrs,
		UpdateExpression:          exp.Update(),
		ConditionExpression:       exp.Condition(),
		ExpressionAttributeNames:  exp.Names(),
		ExpressionAttributeValues: exp.Values(),
	}, nil
}

// MarshalDelete builds the request that deletes the entity identified by key.
func (m *Marshaler) MarshalDelete(entityType string, key map[string]any, opts ...WriteOption) (*dynamodbv2.DeleteItemInput, error) {
	o := applyOptions(opts)
	if o.ttlExpiry != nil || o.ifNotExists {
		return nil, fmt.Errorf("delete supports only the IfExists option")
	}
	td, err := m.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	keyAttrs, err := m.keyFor(td, entityType, key)
	if err != nil {
		return nil, err
	}
	in := &dynamodbv2.DeleteItemInput{
		TableName: aws.String(td.Name),
		Key:       keyAttrs,
	}
	cond, err := existenceCondition(td, o)
	if err != nil {
		return nil, err
	}
	if cond.IsSet() {
		exp, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		in.ConditionExpression = exp.Condition()
		in.ExpressionAttributeNames = exp.Names()
	}
	return in, nil
}

// MarshalGet builds the request that reads the entity identified by key.
func (m *Marshaler) MarshalGet(entityType string, key map[string]any) (*dynamodbv2.GetItemInput, error) {
	td, err := m.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	keyAttrs, err := m.keyFor(td, entityType, key)
	if err != nil {
		return nil, err
	}
	return &dynamodbv2.GetItemInput{
		TableName: aws.String(td.Name),
		Key:       keyAttrs,
	}, nil
}

func (m *Marshaler) keyFor(td table.TableDefinition, entityType string, attrs map[string]any) (map[string]types.AttributeValue, error) {
	resolved, err := m.resolver.ResolvePrimaryKey(entityType, attrs)
	if err != nil {
		return nil, err
	}
	pk := table.PrimaryKey{
		Definition: td.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: resolved[td.KeyDefinitions.PartitionKey.Name]},
	}
	if td.KeyDefinitions.SortKey.Name != "" {
		pk.Values.SortKey = resolved[td.KeyDefinitions.SortKey.Name]
	}
	return pk.DDB()
}

func existenceCondition(td table.TableDefinition, o writeOptions) (expression.ConditionBuilder, error) {
	pkName := expression.Name(td.KeyDefinitions.PartitionKey.Name)
	switch {
	case o.ifExists && o.ifNotExists:
		return expression.ConditionBuilder{}, fmt.Errorf("IfExists and IfNotExists are mutually exclusive")
	case o.ifNotExists:
		return expression.AttributeNotExists(pkName), nil
	case o.ifExists:
		return expression.AttributeExists(pkName), nil
	}
	return expression.ConditionBuilder{}, nil
}

// coerceKeys returns attrs with every present table or index key attribute
// converted to its declared kind. Templates produce strings, so a numeric
// sort key such as "{age}" arrives as "42".
func coerceKeys(td table.TableDefinition, attrs map[string]any) (map[string]any, error) {
	kinds := keyKinds(td)
	out := make(map[string]any, len(attrs))
	for name, v := range attrs {
		kind, isKey := kinds[name]
		if !isKey {
			out[name] = v
			continue
		}
		c, err := coerce(v, kind)
		if err != nil {
			return nil, fmt.Errorf("key attribute %q: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

func keyKinds(td table.TableDefinition) map[string]table.KeyKind {
	kinds := make(map[string]table.KeyKind)
	add := func(k table.KeyDef) {
		if k.Name != "" {
			kinds[k.Name] = k.Kind
		}
	}
	add(td.KeyDefinitions.PartitionKey)
	add(td.KeyDefinitions.SortKey)
	for _, gsi := range td.GSIs {
		add(gsi.KeyDefinitions.PartitionKey)
		add(gsi.KeyDefinitions.SortKey)
	}
	for _, lsi := range td.LSIs {
		add(lsi.SortKey)
	}
	return kinds
}

func coerce(v any, kind table.KeyKind) (any, error) {
	s, isString := v.(string)
	switch kind {
	case table.KeyKindN:
		if !isString {
			return v, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return f, nil
	case table.KeyKindB:
		if isString {
			return []byte(s), nil
		}
		return v, nil
	default:
		return v, nil
	}
}
