// Package ddbsdk writes and reads entities through a DynamoDB item client,
// storing each entity with the primary key and index attributes its schema
// resolves to.
package ddbsdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acksell/keyforge/dynamodb/ddbiface"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

type Client struct {
	db  ddbiface.ItemClient
	m   *Marshaler
	log *slog.Logger
}

// New returns a client writing through db. A nil logger discards logs.
func New(db ddbiface.ItemClient, m *Marshaler, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{db: db, m: m, log: log}
}

// Put writes entity with its storage attributes.
func (c *Client) Put(ctx context.Context, entityType string, entity map[string]any, opts ...WriteOption) error {
	put, err := c.m.MarshalPut(entityType, entity, opts...)
	if err != nil {
		return fmt.Errorf("failed to convert put to put item: %w", err)
	}
	if _, err := c.db.PutItem(ctx, put); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	c.log.Debug("put entity", "entity", entityType, "table", *put.TableName, "attributes", len(put.Item))
	return nil
}

// Update sets the changed attributes and every index attribute they affect.
func (c *Client) Update(ctx context.Context, entityType string, key, changed map[string]any, opts ...WriteOption) error {
	update, err := c.m.MarshalUpdate(entityType, key, changed, opts...)
	if err != nil {
		return fmt.Errorf("failed to convert update to update item: %w", err)
	}
	if _, err := c.db.UpdateItem(ctx, update); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	c.log.Debug("updated entity", "entity", entityType, "table", *update.TableName, "changed", len(changed))
	return nil
}

// Delete removes the entity identified by key.
func (c *Client) Delete(ctx context.Context, entityType string, key map[string]any, opts ...WriteOption) error {
	del, err := c.m.MarshalDelete(entityType, key, opts...)
	if err != nil {
		return fmt.Errorf("failed to convert delete to delete item: %w", err)
	}
	if _, err := c.db.DeleteItem(ctx, del); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Get reads the stored attributes of the entity identified by key.
// found is false if there is no such item.
func (c *Client) Get(ctx context.Context, entityType string, key map[string]any) (item map[string]any, found bool, err error) {
	get, err := c.m.MarshalGet(entityType, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to convert get to get item: %w", err)
	}
	out, err := c.db.GetItem(ctx, get)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, true, nil
}
