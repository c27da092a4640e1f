// Package ddbiface provides the item-level interface for DynamoDB client
// operations. It is satisfied by both the AWS SDK v2 DynamoDB client and by
// ddbstore.Store, so writers work against real DynamoDB or local
// BadgerDB-backed storage alike.
package ddbiface

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ItemClient mirrors the single-item method signatures of *dynamodb.Client.
type ItemClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ ItemClient = (*dynamodb.Client)(nil)
