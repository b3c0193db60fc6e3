// Package ddbrepo is the single-table storage facade every domain
// repository is built on. It turns semantic parameters (keys, partial
// updates, query descriptors) into DynamoDB requests, stamps write
// timestamps, and normalizes every driver failure through ddberr.
//
// The facade holds no mutable state: one instance is bound to one table
// definition and is safe for concurrent use. It never retries
// internally; retry policy belongs to the caller, who knows whether an
// operation is idempotent.
package ddbrepo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// Item is a raw DynamoDB item. Domain repositories marshal their entity
// structs with attributevalue and hand the map to the facade.
type Item = map[string]types.AttributeValue

// Attributes every stored item carries in addition to its keys.
const (
	// AttrEntityType discriminates which domain entity an item
	// represents. Set by the domain repository, read-only afterwards.
	AttrEntityType = "entityType"
	// AttrCreatedAt is stamped on first write and read-only afterwards.
	AttrCreatedAt = "createdAt"
	// AttrUpdatedAt is overwritten on every write.
	AttrUpdatedAt = "updatedAt"
)

// Key addresses one item in the table.
type Key struct {
	PK string
	SK string
}

// DynamoClient is the subset of the DynamoDB API the facade needs.
// *dynamodb.Client satisfies it; tests use the ddblocal store or a
// recording fake.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Repository is the facade bound to one table.
type Repository struct {
	client DynamoClient
	table  table.Definition
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the timestamp source. Tests use it to freeze
// createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New builds a facade for the given table. The definition is validated
// once here and treated as immutable afterwards.
func New(client DynamoClient, def table.Definition, opts ...Option) (*Repository, error) {
	if client == nil {
		return nil, ddberr.Validation("ddbrepo: nil client")
	}
	if err := def.Validate(); err != nil {
		return nil, ddberr.Validation("ddbrepo: %v", err)
	}
	r := &Repository{
		client: client,
		table:  def,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Table returns the bound table definition.
func (r *Repository) Table() table.Definition { return r.table }

func (r *Repository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func (r *Repository) validKey(key Key) error {
	if key.PK == "" || key.SK == "" {
		return ddberr.Validation("ddbrepo: partition and sort key are required, got pk=%q sk=%q", key.PK, key.SK)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
