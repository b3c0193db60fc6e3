package ddbrepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// Delete removes the item at key. The item must exist: deleting a
// missing key fails with a conditional-check error rather than being a
// silent no-op, so callers wanting idempotent delete catch that error
// explicitly. Additional conditions are ANDed with the existence
// precondition.
func (r *Repository) Delete(ctx context.Context, key Key, conds ...expression.ConditionBuilder) error {
	if err := r.validKey(key); err != nil {
		return err
	}

	cond := expression.AttributeExists(expression.Name(r.table.Keys.PartitionKey))
	for _, c := range conds {
		cond = cond.And(c)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("ddbrepo: build delete condition: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 &r.table.Name,
		Key:                       r.table.KeyFor(key.PK, key.SK),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return ddberr.Classify("delete", err)
	}
	return nil
}
