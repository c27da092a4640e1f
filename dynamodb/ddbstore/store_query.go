package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// QueryIndex returns every item in one partition of a table or one of its
// secondary indexes, in sort key order. An empty indexName queries the table.
//
// Items left out of a sparse index are never returned for it.
func (s *Store) QueryIndex(ctx context.Context, tableName, indexName string, partitionValue any) ([]map[string]types.AttributeValue, error) {
	tabl, err := s.getTable(&tableName)
	if err != nil {
		return nil, err
	}

	encoder := tabl.encoder
	if indexName != "" {
		idx, ok := tabl.index(indexName)
		if !ok {
			return nil, fmt.Errorf("table %q has no index %q", tableName, indexName)
		}
		encoder = idx.encoder
	}

	prefix, err := encoder.partitionPrefix(partitionValue)
	if err != nil {
		return nil, fmt.Errorf("encode partition key prefix: %w", err)
	}

	var items []map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			var item map[string]types.AttributeValue
			if indexName == "" {
				item, err = deserializeItem(val)
			} else {
				item, err = readItem(txn, val)
				if err == nil && item == nil {
					err = fmt.Errorf("index %q points at a missing item", indexName)
				}
			}
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
