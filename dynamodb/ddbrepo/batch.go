package ddbrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
)

// DynamoDB's documented per-call batch ceilings.
const (
	MaxBatchWriteItems = 25
	MaxBatchGetItems   = 100
)

// BatchWriteResult reports what a batch write actually achieved.
// Under throttling the store processes a batch partially and hands the
// rest back; the facade surfaces those requests instead of retrying
// them, because retry policy belongs to the caller.
type BatchWriteResult struct {
	// Unprocessed holds the write requests the store did not apply.
	Unprocessed []types.WriteRequest
	// Calls is the number of store round-trips issued.
	Calls int
}

// Done reports whether every request was applied.
func (r *BatchWriteResult) Done() bool { return len(r.Unprocessed) == 0 }

// Err returns nil when Done, otherwise an error naming the leftover count.
func (r *BatchWriteResult) Err() error {
	if r.Done() {
		return nil
	}
	return fmt.Errorf("ddbrepo: batch incomplete, %d requests unprocessed", len(r.Unprocessed))
}

// BatchWrite upserts all items, chunked into store-compliant batches of
// MaxBatchWriteItems, issued sequentially. Timestamps are stamped the
// same way Put stamps them. Batch writes are unconditional; per-item
// preconditions need TransactWrite.
//
// An empty input returns a done result with zero store calls.
func (r *Repository) BatchWrite(ctx context.Context, items []Item) (*BatchWriteResult, error) {
	reqs := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		stamped, err := r.stampForWrite(item)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: stamped}})
	}
	return r.batchWrite(ctx, reqs)
}

// BatchDelete removes all keys, chunked like BatchWrite. Unlike Delete
// there is no existence precondition: the store treats deleting a
// missing key inside a batch as a no-op.
func (r *Repository) BatchDelete(ctx context.Context, keys []Key) (*BatchWriteResult, error) {
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		if err := r.validKey(key); err != nil {
			return nil, err
		}
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: r.table.KeyFor(key.PK, key.SK)}})
	}
	return r.batchWrite(ctx, reqs)
}

func (r *Repository) batchWrite(ctx context.Context, reqs []types.WriteRequest) (*BatchWriteResult, error) {
	result := &BatchWriteResult{}
	for _, batch := range chunk(reqs, MaxBatchWriteItems) {
		res, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.table.Name: batch},
		})
		if err != nil {
			return nil, ddberr.Classify("batch write", err)
		}
		result.Calls++
		result.Unprocessed = append(result.Unprocessed, res.UnprocessedItems[r.table.Name]...)
	}
	return result, nil
}

// BatchWriteRetry is the bounded-retry convenience on top of
// BatchWrite: it re-submits unprocessed requests with full-jitter
// exponential backoff, up to maxRetries attempts. Callers that need
// finer control use BatchWrite and drive BatchWriteResult themselves.
func (r *Repository) BatchWriteRetry(ctx context.Context, items []Item, maxRetries int) error {
	if maxRetries <= 0 {
		return ddberr.Validation("ddbrepo: BatchWriteRetry needs a positive retry budget")
	}
	result, err := r.BatchWrite(ctx, items)
	if err != nil {
		return err
	}
	for attempt := 0; !result.Done(); attempt++ {
		if attempt >= maxRetries {
			return fmt.Errorf("ddbrepo: %d requests unprocessed after %d retries", len(result.Unprocessed), maxRetries)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DefaultBackoff(attempt)):
		}
		result, err = r.batchWrite(ctx, result.Unprocessed)
		if err != nil {
			return err
		}
	}
	return nil
}

// BatchGetResult holds the items found plus any keys the store left
// unprocessed under throttling. Missing keys are simply absent from
// Items; result order is unrelated to input order.
type BatchGetResult struct {
	Items       []Item
	Unprocessed []Key
}

// Done reports whether the store processed every requested key.
func (r *BatchGetResult) Done() bool { return len(r.Unprocessed) == 0 }

// BatchGet fetches up to MaxBatchGetItems keys per store call,
// sequentially, concatenating results.
func (r *Repository) BatchGet(ctx context.Context, keys []Key) (*BatchGetResult, error) {
	attrKeys := make([]Item, 0, len(keys))
	for _, key := range keys {
		if err := r.validKey(key); err != nil {
			return nil, err
		}
		attrKeys = append(attrKeys, r.table.KeyFor(key.PK, key.SK))
	}

	result := &BatchGetResult{Items: make([]Item, 0, len(keys))}
	for _, batch := range chunk(attrKeys, MaxBatchGetItems) {
		res, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				r.table.Name: {Keys: batch},
			},
		})
		if err != nil {
			return nil, ddberr.Classify("batch get", err)
		}
		result.Items = append(result.Items, res.Responses[r.table.Name]...)
		for _, raw := range res.UnprocessedKeys[r.table.Name].Keys {
			pk, sk, err := r.table.ExtractKey(raw)
			if err != nil {
				return nil, fmt.Errorf("ddbrepo: unprocessed key: %w", err)
			}
			result.Unprocessed = append(result.Unprocessed, Key{PK: pk, SK: sk})
		}
	}
	return result, nil
}
