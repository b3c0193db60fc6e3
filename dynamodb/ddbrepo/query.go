package ddbrepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// Query describes a single-partition lookup against the table or one of
// its GSIs.
//
// At most one of SortValue and SortPrefix may be set; neither means the
// whole partition. Results come back in ascending sort-key order unless
// Descending is set. Filter is applied server-side after the key
// condition and always uses placeholder names and values.
type Query struct {
	// Index selects a GSI by name. Empty queries the primary key.
	Index string
	// PartitionValue is the required partition key value.
	PartitionValue string
	// SortValue matches the sort key exactly.
	SortValue string
	// SortPrefix matches sort keys beginning with the prefix.
	SortPrefix string
	// Filter is an optional post-key-condition predicate.
	Filter expression.ConditionBuilder
	// Limit caps the number of items. Zero means no cap.
	Limit int32
	// Descending returns most-recent-first for time-ordered sort keys.
	Descending bool
	// StartKey resumes a paginated query from a previous page's LastKey.
	StartKey Item
}

// Page is one page of query results. A nil LastKey means the result set
// is exhausted; a non-nil one is passed back as StartKey to continue.
type Page struct {
	Items   []Item
	LastKey Item
	Count   int32
}

func (r *Repository) queryKeys(q Query) (table.KeyNames, error) {
	if q.Index == "" {
		return r.table.Keys, nil
	}
	gsi, ok := r.table.Index(q.Index)
	if !ok {
		return table.KeyNames{}, ddberr.Validation("ddbrepo: table %q has no index %q", r.table.Name, q.Index)
	}
	return gsi.Keys, nil
}

func (r *Repository) buildQueryInput(q Query) (*dynamodb.QueryInput, error) {
	if q.PartitionValue == "" {
		return nil, ddberr.Validation("ddbrepo: query requires a partition value")
	}
	if q.SortValue != "" && q.SortPrefix != "" {
		return nil, ddberr.Validation("ddbrepo: query sets both SortValue and SortPrefix")
	}
	keys, err := r.queryKeys(q)
	if err != nil {
		return nil, err
	}

	keyCond := expression.KeyEqual(expression.Key(keys.PartitionKey), expression.Value(q.PartitionValue))
	switch {
	case q.SortValue != "":
		keyCond = keyCond.And(expression.KeyEqual(expression.Key(keys.SortKey), expression.Value(q.SortValue)))
	case q.SortPrefix != "":
		keyCond = keyCond.And(expression.KeyBeginsWith(expression.Key(keys.SortKey), q.SortPrefix))
	}

	b := expression.NewBuilder().WithKeyCondition(keyCond)
	if q.Filter.IsSet() {
		b = b.WithFilter(q.Filter)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("ddbrepo: build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 &r.table.Name,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          ptr(!q.Descending),
		ExclusiveStartKey:         q.StartKey,
	}
	if q.Index != "" {
		input.IndexName = &q.Index
	}
	if q.Limit > 0 {
		input.Limit = ptr(q.Limit)
	}
	return input, nil
}

// QueryPage runs one round-trip and returns the page as the store
// produced it. Callers drive pagination by feeding LastKey back in as
// StartKey.
func (r *Repository) QueryPage(ctx context.Context, q Query) (*Page, error) {
	input, err := r.buildQueryInput(q)
	if err != nil {
		return nil, err
	}
	res, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, ddberr.Classify("query", err)
	}
	items := make([]Item, 0, len(res.Items))
	items = append(items, res.Items...)
	page := &Page{Items: items, Count: res.Count}
	if len(res.LastEvaluatedKey) > 0 {
		page.LastKey = res.LastEvaluatedKey
	}
	return page, nil
}

// Query drains all pages and returns the matching items. No match is an
// empty, non-nil slice. When Limit is set, at most Limit items are
// returned.
func (r *Repository) Query(ctx context.Context, q Query) ([]Item, error) {
	items := make([]Item, 0)
	for {
		page, err := r.QueryPage(ctx, q)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if q.Limit > 0 && int32(len(items)) >= q.Limit {
			return items[:q.Limit], nil
		}
		if page.LastKey == nil {
			return items, nil
		}
		q.StartKey = page.LastKey
	}
}

// Count runs the query in count-only mode: no item payloads leave the
// store.
func (r *Repository) Count(ctx context.Context, q Query) (int32, error) {
	input, err := r.buildQueryInput(q)
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	var total int32
	for {
		res, err := r.client.Query(ctx, input)
		if err != nil {
			return 0, ddberr.Classify("count", err)
		}
		total += res.Count
		if len(res.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = res.LastEvaluatedKey
	}
}
