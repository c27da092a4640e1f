package ddbstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("The conditional request failed"),
	}
}

// readItem returns the item stored under key, or nil if there is none.
func readItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	stored, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = stored.Value(func(val []byte) error {
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}

// itemKey encodes the table key of an item.
func (t *tableSchema) itemKey(item map[string]types.AttributeValue) ([]byte, error) {
	pk, err := t.definition.ExtractPrimaryKey(item)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}
	key, err := t.encoder.encodeKey(pk, nil)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	return key, nil
}

// entryKey returns the index entry key of item. ok is false when the item
// lacks any of the index key attributes and so is not in the index.
func (idx *indexSchema) entryKey(item map[string]types.AttributeValue, itemKey []byte) (key []byte, ok bool, err error) {
	if item == nil {
		return nil, false, nil
	}
	for _, name := range idx.encoder.keys.Names() {
		if _, present := item[name]; !present {
			return nil, false, nil
		}
	}
	pk, err := idx.encoder.keys.ExtractPrimaryKey(item)
	if err != nil {
		return nil, false, fmt.Errorf("index %q: %w", idx.name, err)
	}
	key, err = idx.encoder.encodeKey(pk, itemKey)
	if err != nil {
		return nil, false, fmt.Errorf("index %q: %w", idx.name, err)
	}
	return key, true, nil
}

// writeIndexes moves the index entries of one table item from oldItem's keys
// to newItem's. Either may be nil.
func (t *tableSchema) writeIndexes(txn *badger.Txn, itemKey []byte, newItem, oldItem map[string]types.AttributeValue) error {
	for _, idx := range t.indexes {
		oldKey, hadOld, err := idx.entryKey(oldItem, itemKey)
		if err != nil {
			return err
		}
		newKey, hasNew, err := idx.entryKey(newItem, itemKey)
		if err != nil {
			return err
		}
		if hadOld && (!hasNew || !bytes.Equal(oldKey, newKey)) {
			if err := txn.Delete(oldKey); err != nil {
				return err
			}
		}
		if hasNew {
			if err := txn.Set(newKey, itemKey); err != nil {
				return err
			}
		}
	}
	return nil
}
