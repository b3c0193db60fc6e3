package ddbrepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// Get fetches one item by primary key. A missing item is (nil, nil),
// never an error.
func (r *Repository) Get(ctx context.Context, key Key) (Item, error) {
	if err := r.validKey(key); err != nil {
		return nil, err
	}
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table.Name,
		Key:       r.table.KeyFor(key.PK, key.SK),
	})
	if err != nil {
		return nil, ddberr.Classify("get", err)
	}
	if res.Item == nil {
		return nil, nil
	}
	return res.Item, nil
}

// Exists reports whether the key is present. It projects only the
// partition key attribute, never the item payload.
func (r *Repository) Exists(ctx context.Context, key Key) (bool, error) {
	if err := r.validKey(key); err != nil {
		return false, err
	}
	proj := expression.NamesList(expression.Name(r.table.Keys.PartitionKey))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return false, fmt.Errorf("ddbrepo: build projection: %w", err)
	}
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                &r.table.Name,
		Key:                      r.table.KeyFor(key.PK, key.SK),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return false, ddberr.Classify("exists", err)
	}
	return res.Item != nil, nil
}
