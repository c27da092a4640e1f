package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// DeleteItem removes an item and its index entries.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tabl.itemKey(params.Key)
	if err != nil {
		return nil, err
	}

	var oldItem map[string]types.AttributeValue
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
		if oldItem == nil {
			return nil
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return tabl.writeIndexes(txn, key, nil, oldItem)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("deleted item", "table", tabl.definition.Name, "existed", oldItem != nil)

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}
