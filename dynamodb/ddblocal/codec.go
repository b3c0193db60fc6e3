package ddblocal

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// Items are persisted as JSON of their plain-Go representation. That
// round-trips S/N/BOOL/M/L/NULL attributes, which is all the
// single-table layout uses.
func encodeItem(item map[string]types.AttributeValue) ([]byte, error) {
	var plain map[string]any
	if err := attributevalue.UnmarshalMap(item, &plain); err != nil {
		return nil, fmt.Errorf("ddblocal: encode item: %w", err)
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("ddblocal: encode item: %w", err)
	}
	return data, nil
}

func decodeItem(data []byte) (map[string]types.AttributeValue, error) {
	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("ddblocal: decode item: %w", err)
	}
	item, err := attributevalue.MarshalMap(plain)
	if err != nil {
		return nil, fmt.Errorf("ddblocal: decode item: %w", err)
	}
	return item, nil
}

// readItem loads the item at (pk, sk), or nil when absent.
func readItem(txn *badger.Txn, def table.Definition, pk, sk string) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(dataKey(def.Name, pk, sk))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = entry.Value(func(val []byte) error {
		item, err = decodeItem(val)
		return err
	})
	return item, err
}

// writeItem stores the item and refreshes every GSI entry derived from
// it, removing entries the previous version projected.
func writeItem(txn *badger.Txn, def table.Definition, item map[string]types.AttributeValue) error {
	pk, sk, err := def.ExtractKey(item)
	if err != nil {
		return err
	}
	old, err := readItem(txn, def, pk, sk)
	if err != nil {
		return err
	}
	if err := dropIndexEntries(txn, def, old, pk, sk); err != nil {
		return err
	}

	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	if err := txn.Set(dataKey(def.Name, pk, sk), data); err != nil {
		return err
	}
	for _, gsi := range def.GSIs {
		gpk, gsk, ok := indexKeysOf(gsi, item)
		if !ok {
			continue
		}
		if err := txn.Set(indexKey(def.Name, gsi.Name, gpk, gsk, pk, sk), data); err != nil {
			return err
		}
	}
	return nil
}

// removeItem deletes the item and its GSI entries. Removing a missing
// key is a no-op.
func removeItem(txn *badger.Txn, def table.Definition, pk, sk string) error {
	old, err := readItem(txn, def, pk, sk)
	if err != nil {
		return err
	}
	if old == nil {
		return nil
	}
	if err := dropIndexEntries(txn, def, old, pk, sk); err != nil {
		return err
	}
	return txn.Delete(dataKey(def.Name, pk, sk))
}

func dropIndexEntries(txn *badger.Txn, def table.Definition, item map[string]types.AttributeValue, pk, sk string) error {
	if item == nil {
		return nil
	}
	for _, gsi := range def.GSIs {
		gpk, gsk, ok := indexKeysOf(gsi, item)
		if !ok {
			continue
		}
		if err := txn.Delete(indexKey(def.Name, gsi.Name, gpk, gsk, pk, sk)); err != nil {
			return err
		}
	}
	return nil
}

// indexKeysOf returns the item's key pair for a GSI, or ok=false when
// the item does not project into that index (sparse index).
func indexKeysOf(gsi table.GSI, item map[string]types.AttributeValue) (gpk, gsk string, ok bool) {
	p, pok := item[gsi.Keys.PartitionKey].(*types.AttributeValueMemberS)
	s, sok := item[gsi.Keys.SortKey].(*types.AttributeValueMemberS)
	if !pok || !sok {
		return "", "", false
	}
	return p.Value, s.Value, true
}
