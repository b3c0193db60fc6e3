package ddbrepo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// Put writes the item unconditionally (upsert). updatedAt is always
// overwritten; createdAt is stamped only when the input item does not
// carry one. The stored item is returned; the caller's map is not
// mutated.
func (r *Repository) Put(ctx context.Context, item Item) (Item, error) {
	stamped, err := r.stampForWrite(item)
	if err != nil {
		return nil, err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.table.Name,
		Item:      stamped,
	})
	if err != nil {
		return nil, ddberr.Classify("put", err)
	}
	return stamped, nil
}

// stampForWrite copies the item and applies the facade's timestamp
// policy. It rejects items missing their key attributes.
func (r *Repository) stampForWrite(item Item) (Item, error) {
	if _, _, err := r.table.ExtractKey(item); err != nil {
		return nil, ddberr.Validation("ddbrepo: %v", err)
	}
	stamped := make(Item, len(item)+2)
	for k, v := range item {
		stamped[k] = v
	}
	ts := &types.AttributeValueMemberS{Value: r.timestamp()}
	if _, ok := stamped[AttrCreatedAt]; !ok {
		stamped[AttrCreatedAt] = ts
	}
	stamped[AttrUpdatedAt] = ts
	return stamped, nil
}
