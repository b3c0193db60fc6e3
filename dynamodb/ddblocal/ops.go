package ddblocal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// condCheck evaluates an optional condition expression against the
// item's current state and reports failure the way DynamoDB does.
func condCheck(expr *string, names map[string]string, values map[string]types.AttributeValue, current map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}
	ok, err := evalCondition(*expr, current, newExprEnv(names, values))
	if err != nil {
		return err
	}
	if !ok {
		return &types.ConditionalCheckFailedException{Message: ptr("The conditional request failed")}
	}
	return nil
}

func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	def, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		pk, sk, err := def.ExtractKey(params.Item)
		if err != nil {
			return err
		}
		existing, err := readItem(txn, def, pk, sk)
		if err != nil {
			return err
		}
		if err := condCheck(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}
		return writeItem(txn, def, params.Item)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	def, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		pk, sk, err := def.ExtractKey(params.Key)
		if err != nil {
			return err
		}
		item, err = readItem(txn, def, pk, sk)
		return err
	})
	if err != nil {
		return nil, err
	}
	// Projection expressions are accepted but not applied; callers that
	// project do so to save bandwidth, not to change semantics.
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	def, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	var updated map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		pk, sk, err := def.ExtractKey(params.Key)
		if err != nil {
			return err
		}
		existing, err := readItem(txn, def, pk, sk)
		if err != nil {
			return err
		}
		if err := condCheck(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}
		// DynamoDB creates the item from its key when updating a
		// missing key without an existence condition.
		base := cloneItem(params.Key)
		if existing != nil {
			base = cloneItem(existing)
		}
		if params.UpdateExpression != nil {
			env := newExprEnv(params.ExpressionAttributeNames, params.ExpressionAttributeValues)
			if err := applyUpdate(*params.UpdateExpression, base, env); err != nil {
				return err
			}
		}
		updated = base
		return writeItem(txn, def, base)
	})
	if err != nil {
		return nil, err
	}
	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = updated
	}
	return out, nil
}

func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	def, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		pk, sk, err := def.ExtractKey(params.Key)
		if err != nil {
			return err
		}
		existing, err := readItem(txn, def, pk, sk)
		if err != nil {
			return err
		}
		if err := condCheck(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}
		return removeItem(txn, def, pk, sk)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (s *Store) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	out := &dynamodb.BatchGetItemOutput{
		Responses:       make(map[string][]map[string]types.AttributeValue),
		UnprocessedKeys: make(map[string]types.KeysAndAttributes),
	}
	for tableName, kaa := range params.RequestItems {
		def, err := s.getTable(&tableName)
		if err != nil {
			return nil, err
		}
		err = s.db.View(func(txn *badger.Txn) error {
			for _, key := range kaa.Keys {
				pk, sk, err := def.ExtractKey(key)
				if err != nil {
					return err
				}
				item, err := readItem(txn, def, pk, sk)
				if err != nil {
					return err
				}
				if item != nil {
					out.Responses[tableName] = append(out.Responses[tableName], item)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	for tableName, reqs := range params.RequestItems {
		def, err := s.getTable(&tableName)
		if err != nil {
			return nil, err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			for _, req := range reqs {
				switch {
				case req.PutRequest != nil:
					if err := writeItem(txn, def, req.PutRequest.Item); err != nil {
						return err
					}
				case req.DeleteRequest != nil:
					pk, sk, err := def.ExtractKey(req.DeleteRequest.Key)
					if err != nil {
						return err
					}
					if err := removeItem(txn, def, pk, sk); err != nil {
						return err
					}
				default:
					return fmt.Errorf("ddblocal: empty write request")
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: make(map[string][]types.WriteRequest),
	}, nil
}

func (s *Store) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.checkTransactConditions(txn, params.TransactItems); err != nil {
			return err
		}
		for _, op := range params.TransactItems {
			if err := s.applyTransactItem(txn, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// checkTransactConditions evaluates every operation's precondition
// against the pre-transaction state. One failure cancels the whole
// transaction with per-item cancellation reasons, like DynamoDB.
func (s *Store) checkTransactConditions(txn *badger.Txn, ops []types.TransactWriteItem) error {
	reasons := make([]types.CancellationReason, len(ops))
	failed := false
	for i, op := range ops {
		reasons[i] = types.CancellationReason{Code: ptr("None")}

		def, key, cond, names, values, err := s.transactTarget(txn, op)
		if err != nil {
			return err
		}
		if cond == nil {
			continue
		}
		current, err := readItem(txn, def, key.pk, key.sk)
		if err != nil {
			return err
		}
		ok, err := evalCondition(*cond, current, newExprEnv(names, values))
		if err != nil {
			return err
		}
		if !ok {
			reasons[i] = types.CancellationReason{
				Code:    ptr("ConditionalCheckFailed"),
				Message: ptr("The conditional request failed"),
			}
			failed = true
		}
	}
	if failed {
		return &types.TransactionCanceledException{
			Message:             ptr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	return nil
}

type itemKey struct {
	pk string
	sk string
}

func (s *Store) transactTarget(txn *badger.Txn, op types.TransactWriteItem) (table.Definition, itemKey, *string, map[string]string, map[string]types.AttributeValue, error) {
	switch {
	case op.Put != nil:
		def, err := s.getTable(op.Put.TableName)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		pk, sk, err := def.ExtractKey(op.Put.Item)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		return def, itemKey{pk, sk}, op.Put.ConditionExpression, op.Put.ExpressionAttributeNames, op.Put.ExpressionAttributeValues, nil
	case op.Update != nil:
		def, err := s.getTable(op.Update.TableName)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		pk, sk, err := def.ExtractKey(op.Update.Key)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		return def, itemKey{pk, sk}, op.Update.ConditionExpression, op.Update.ExpressionAttributeNames, op.Update.ExpressionAttributeValues, nil
	case op.Delete != nil:
		def, err := s.getTable(op.Delete.TableName)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		pk, sk, err := def.ExtractKey(op.Delete.Key)
		if err != nil {
			return table.Definition{}, itemKey{}, nil, nil, nil, err
		}
		return def, itemKey{pk, sk}, op.Delete.ConditionExpression, op.Delete.ExpressionAttributeNames, op.Delete.ExpressionAttributeValues, nil
	default:
		return table.Definition{}, itemKey{}, nil, nil, nil, fmt.Errorf("ddblocal: unsupported transact item")
	}
}

func (s *Store) applyTransactItem(txn *badger.Txn, op types.TransactWriteItem) error {
	switch {
	case op.Put != nil:
		def, err := s.getTable(op.Put.TableName)
		if err != nil {
			return err
		}
		return writeItem(txn, def, op.Put.Item)
	case op.Update != nil:
		def, err := s.getTable(op.Update.TableName)
		if err != nil {
			return err
		}
		pk, sk, err := def.ExtractKey(op.Update.Key)
		if err != nil {
			return err
		}
		existing, err := readItem(txn, def, pk, sk)
		if err != nil {
			return err
		}
		base := cloneItem(op.Update.Key)
		if existing != nil {
			base = cloneItem(existing)
		}
		if op.Update.UpdateExpression != nil {
			env := newExprEnv(op.Update.ExpressionAttributeNames, op.Update.ExpressionAttributeValues)
			if err := applyUpdate(*op.Update.UpdateExpression, base, env); err != nil {
				return err
			}
		}
		return writeItem(txn, def, base)
	case op.Delete != nil:
		def, err := s.getTable(op.Delete.TableName)
		if err != nil {
			return err
		}
		pk, sk, err := def.ExtractKey(op.Delete.Key)
		if err != nil {
			return err
		}
		return removeItem(txn, def, pk, sk)
	default:
		return fmt.Errorf("ddblocal: unsupported transact item")
	}
}
