package ddbrepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// MaxTransactItems is DynamoDB's per-transaction operation ceiling.
const MaxTransactItems = 100

// TransactOpKind tags the variant of a TransactOp.
type TransactOpKind string

const (
	OpPut    TransactOpKind = "PUT"
	OpUpdate TransactOpKind = "UPDATE"
	OpDelete TransactOpKind = "DELETE"
)

// TransactOp is one operation inside an atomic transaction.
// PUT needs Item; UPDATE needs Key and Attrs; DELETE needs Key.
// Condition is optional on every variant. UPDATE and DELETE carry the
// same existence precondition the standalone Update/Delete methods do,
// so one missing item aborts the whole transaction.
type TransactOp struct {
	Kind      TransactOpKind
	Item      Item
	Key       Key
	Attrs     map[string]any
	Condition expression.ConditionBuilder
}

// TransactPut builds a PUT operation.
func TransactPut(item Item) TransactOp {
	return TransactOp{Kind: OpPut, Item: item}
}

// TransactUpdate builds an UPDATE operation.
func TransactUpdate(key Key, attrs map[string]any) TransactOp {
	return TransactOp{Kind: OpUpdate, Key: key, Attrs: attrs}
}

// TransactDelete builds a DELETE operation.
func TransactDelete(key Key) TransactOp {
	return TransactOp{Kind: OpDelete, Key: key}
}

// WithCondition attaches a precondition to the operation.
func (op TransactOp) WithCondition(c expression.ConditionBuilder) TransactOp {
	op.Condition = c
	return op
}

// TransactWrite applies all operations atomically: if any operation's
// precondition fails, none of them are applied and the error classifies
// as a conditional-check failure. Zero operations is a no-op with no
// store call.
//
// The store refuses transactions with more than one operation on the
// same item, so duplicate targets are rejected here before the
// round-trip.
func (r *Repository) TransactWrite(ctx context.Context, ops []TransactOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxTransactItems {
		return ddberr.Validation("ddbrepo: transaction of %d operations exceeds the %d-item limit", len(ops), MaxTransactItems)
	}

	targets := make(map[Key]int, len(ops))
	items := make([]types.TransactWriteItem, 0, len(ops))
	for i, op := range ops {
		item, err := r.transactItem(op)
		if err != nil {
			return fmt.Errorf("ddbrepo: transact operation %d: %w", i, err)
		}
		target, err := r.transactTargetKey(op)
		if err != nil {
			return fmt.Errorf("ddbrepo: transact operation %d: %w", i, err)
		}
		if prev, dup := targets[target]; dup {
			return ddberr.Validation("ddbrepo: transact operations %d and %d both target %s/%s", prev, i, target.PK, target.SK)
		}
		targets[target] = i
		items = append(items, item)
	}

	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return ddberr.Classify("transact write", err)
	}
	return nil
}

// transactTargetKey resolves the primary key an operation writes to.
func (r *Repository) transactTargetKey(op TransactOp) (Key, error) {
	if op.Kind != OpPut {
		return op.Key, nil
	}
	pk, sk, err := r.table.ExtractKey(op.Item)
	if err != nil {
		return Key{}, ddberr.Validation("%v", err)
	}
	return Key{PK: pk, SK: sk}, nil
}

func (r *Repository) transactItem(op TransactOp) (types.TransactWriteItem, error) {
	switch op.Kind {
	case OpPut:
		return r.transactPut(op)
	case OpUpdate:
		return r.transactUpdate(op)
	case OpDelete:
		return r.transactDelete(op)
	default:
		return types.TransactWriteItem{}, ddberr.Validation("unknown operation kind %q", op.Kind)
	}
}

func (r *Repository) transactPut(op TransactOp) (types.TransactWriteItem, error) {
	if op.Item == nil {
		return types.TransactWriteItem{}, ddberr.Validation("PUT operation has no item")
	}
	stamped, err := r.stampForWrite(op.Item)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	put := &types.Put{
		TableName: &r.table.Name,
		Item:      stamped,
	}
	if op.Condition.IsSet() {
		expr, err := expression.NewBuilder().WithCondition(op.Condition).Build()
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("build condition: %w", err)
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
	}
	return types.TransactWriteItem{Put: put}, nil
}

func (r *Repository) transactUpdate(op TransactOp) (types.TransactWriteItem, error) {
	if err := r.validKey(op.Key); err != nil {
		return types.TransactWriteItem{}, err
	}
	var conds []expression.ConditionBuilder
	if op.Condition.IsSet() {
		conds = append(conds, op.Condition)
	}
	expr, err := r.updateExpression(op.Key, op.Attrs, conds)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 &r.table.Name,
		Key:                       r.table.KeyFor(op.Key.PK, op.Key.SK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, nil
}

func (r *Repository) transactDelete(op TransactOp) (types.TransactWriteItem, error) {
	if err := r.validKey(op.Key); err != nil {
		return types.TransactWriteItem{}, err
	}
	cond := expression.AttributeExists(expression.Name(r.table.Keys.PartitionKey))
	if op.Condition.IsSet() {
		cond = cond.And(op.Condition)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("build condition: %w", err)
	}
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName:                 &r.table.Name,
		Key:                       r.table.KeyFor(op.Key.PK, op.Key.SK),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, nil
}
