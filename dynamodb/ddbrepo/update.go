package ddbrepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// Update merge-updates the item at key: named attributes are set,
// everything else is preserved. The item must already exist; updating a
// missing key fails with a conditional-check error and never creates
// the item.
//
// Key attributes, createdAt, updatedAt and entityType are read-only:
// they are silently dropped from the update set so callers can pass a
// marshalled entity without scrubbing it first. updatedAt is stamped by
// the facade instead. An empty attrs map is rejected before any store
// call.
//
// Additional conditions (the compare-and-swap extension point) are
// ANDed with the existence precondition. Content-level versioning is
// deliberately not built in; last write wins unless the caller passes a
// condition.
func (r *Repository) Update(ctx context.Context, key Key, attrs map[string]any, conds ...expression.ConditionBuilder) (Item, error) {
	if err := r.validKey(key); err != nil {
		return nil, err
	}
	expr, err := r.updateExpression(key, attrs, conds)
	if err != nil {
		return nil, err
	}

	res, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table.Name,
		Key:                       r.table.KeyFor(key.PK, key.SK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, ddberr.Classify("update", err)
	}
	return res.Attributes, nil
}

// updateExpression builds the merge-update expression shared by Update
// and TransactWrite's update variant: read-only attributes dropped,
// updatedAt stamped, existence precondition ANDed with caller
// conditions.
func (r *Repository) updateExpression(key Key, attrs map[string]any, conds []expression.ConditionBuilder) (expression.Expression, error) {
	if len(attrs) == 0 {
		return expression.Expression{}, ddberr.Validation("ddbrepo: empty update for %s/%s", key.PK, key.SK)
	}

	update := expression.UpdateBuilder{}
	// Sorted field order keeps generated expressions deterministic.
	names := maps.Keys(attrs)
	slices.Sort(names)
	for _, name := range names {
		if r.readOnlyAttr(name) {
			continue
		}
		update = update.Set(expression.Name(name), expression.Value(attrs[name]))
	}
	update = update.Set(expression.Name(AttrUpdatedAt), expression.Value(r.timestamp()))

	cond := expression.AttributeExists(expression.Name(r.table.Keys.PartitionKey))
	for _, c := range conds {
		cond = cond.And(c)
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("ddbrepo: build update expression: %w", err)
	}
	return expr, nil
}

// readOnlyAttr lists the attributes the facade owns. updatedAt is
// included so a caller-supplied value cannot produce a second SET
// action on the same document path, which the store rejects; the
// facade's own stamp is the only one emitted.
func (r *Repository) readOnlyAttr(name string) bool {
	switch name {
	case r.table.Keys.PartitionKey, r.table.Keys.SortKey, AttrCreatedAt, AttrUpdatedAt, AttrEntityType:
		return true
	}
	return false
}
