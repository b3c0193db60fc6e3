package ddblocal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	def, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("ddblocal: query requires a key condition")
	}

	prefix := dataPrefix(def.Name)
	if params.IndexName != nil {
		if _, ok := def.Index(*params.IndexName); !ok {
			return nil, &types.ResourceNotFoundException{
				Message: ptr("Requested resource not found: Index: " + *params.IndexName),
			}
		}
		prefix = indexPrefix(def.Name, *params.IndexName)
	}

	env := newExprEnv(params.ExpressionAttributeNames, params.ExpressionAttributeValues)

	// Badger iterates the prefix in (partition, sort) byte order, which
	// matches DynamoDB's ordering for string keys. Matches are collected
	// first; pagination and direction are applied on the slice.
	var docs []map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var item map[string]types.AttributeValue
			err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = decodeItem(val)
				return err
			})
			if err != nil {
				return err
			}
			ok, err := evalCondition(*params.KeyConditionExpression, item, env)
			if err != nil {
				return err
			}
			if ok {
				docs = append(docs, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}

	if len(params.ExclusiveStartKey) > 0 {
		startPK, startSK, err := def.ExtractKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, doc := range docs {
			pk, sk, err := def.ExtractKey(doc)
			if err != nil {
				return nil, err
			}
			if pk == startPK && sk == startSK {
				docs = docs[i+1:]
				break
			}
		}
	}

	out := &dynamodb.QueryOutput{}
	countOnly := params.Select == types.SelectCount
	var scanned int32
	for i, doc := range docs {
		scanned++
		matched := true
		if params.FilterExpression != nil {
			matched, err = evalCondition(*params.FilterExpression, doc, env)
			if err != nil {
				return nil, err
			}
		}
		if matched {
			out.Count++
			if !countOnly {
				out.Items = append(out.Items, doc)
			}
		}
		// Limit counts items scanned by the key condition, before the
		// filter, like DynamoDB.
		if params.Limit != nil && int32(i+1) >= *params.Limit && i+1 < len(docs) {
			pk, sk, err := def.ExtractKey(doc)
			if err != nil {
				return nil, err
			}
			out.LastEvaluatedKey = def.KeyFor(pk, sk)
			break
		}
	}
	out.ScannedCount = scanned
	return out, nil
}
