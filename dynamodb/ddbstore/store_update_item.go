package ddbstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// UpdateItem applies a SET update to an item, creating it if it does not
// exist. Index entries follow the updated key attributes.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("UpdateExpression is required")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tabl.itemKey(params.Key)
	if err != nil {
		return nil, err
	}

	actions, err := parseSetExpression(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, fmt.Errorf("parse update expression: %w", err)
	}
	keyNames := tabl.definition.KeyDefinitions.Names()
	for _, a := range actions {
		if slices.Contains(keyNames, a.path[0]) {
			return nil, fmt.Errorf("cannot update attribute %q: it is part of the key", a.path[0])
		}
	}

	var oldItem, newItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = readItem(txn, key)
		if err != nil {
			return err
		}
		ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, oldItem)
		if err != nil {
			return fmt.Errorf("evaluate condition: %w", err)
		}
		if !ok {
			return conditionFailed()
		}

		newItem = make(map[string]types.AttributeValue, len(oldItem)+len(actions))
		for k, v := range oldItem {
			newItem[k] = v
		}
		for k, v := range params.Key {
			newItem[k] = v
		}
		for _, a := range actions {
			if err := setPath(newItem, a.path, a.value); err != nil {
				return err
			}
		}

		itemBytes, err := serializeItem(newItem)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		if err := txn.Set(key, itemBytes); err != nil {
			return err
		}
		return tabl.writeIndexes(txn, key, newItem, oldItem)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("updated item", "table", tabl.definition.Name, "attributes", len(actions), "created", oldItem == nil)

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllOld:
		out.Attributes = oldItem
	case types.ReturnValueAllNew:
		out.Attributes = newItem
	}
	return out, nil
}
