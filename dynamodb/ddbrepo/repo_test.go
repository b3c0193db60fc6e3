package ddbrepo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddblocal"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

var testDef = table.Definition{
	Name: "budget-test",
	Keys: table.KeyNames{PartitionKey: "pk", SortKey: "sk"},
	GSIs: []table.GSI{
		{Name: "gsi1", Keys: table.KeyNames{PartitionKey: "gsi1pk", SortKey: "gsi1sk"}},
	},
}

var frozenTime = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// recordingClient delegates to a local store while counting calls and
// keeping the inputs for expression-shape assertions.
type recordingClient struct {
	*ddblocal.Store

	updates     []*dynamodb.UpdateItemInput
	batchWrites int
	transacts   int
}

func (c *recordingClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.updates = append(c.updates, params)
	return c.Store.UpdateItem(ctx, params, optFns...)
}

func (c *recordingClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	c.batchWrites++
	return c.Store.BatchWriteItem(ctx, params, optFns...)
}

func (c *recordingClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.transacts++
	return c.Store.TransactWriteItems(ctx, params, optFns...)
}

func newTestRepo(t *testing.T) (*Repository, *recordingClient) {
	t.Helper()
	store, err := ddblocal.New(ddblocal.Options{InMemory: true}, testDef)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := &recordingClient{Store: store}
	repo, err := New(client, testDef, WithClock(func() time.Time { return frozenTime }))
	require.NoError(t, err)
	return repo, client
}

func testItem(pk, sk string, attrs map[string]types.AttributeValue) Item {
	item := Item{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
	for k, v := range attrs {
		item[k] = v
	}
	return item
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func num(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func attrStr(t *testing.T, item Item, name string) string {
	t.Helper()
	s, ok := item[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q missing or not a string", name)
	return s.Value
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, testDef)
	require.True(t, ddberr.IsValidation(err))

	store, err := ddblocal.New(ddblocal.Options{InMemory: true}, testDef)
	require.NoError(t, err)
	defer store.Close()

	_, err = New(store, table.Definition{Name: "x"})
	require.True(t, ddberr.IsValidation(err))
}

func TestPutStampsAndGetRoundTrips(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	item := testItem("USER#1", "ACCOUNT#1", map[string]types.AttributeValue{
		"entityType": str("account"),
		"name":       str("Checking"),
	})
	stored, err := repo.Put(ctx, item)
	require.NoError(t, err)

	want := frozenTime.Format(time.RFC3339Nano)
	require.Equal(t, want, attrStr(t, stored, AttrCreatedAt))
	require.Equal(t, want, attrStr(t, stored, AttrUpdatedAt))
	// The caller's map is left alone.
	require.NotContains(t, item, AttrCreatedAt)

	got, err := repo.Get(ctx, Key{PK: "USER#1", SK: "ACCOUNT#1"})
	require.NoError(t, err)
	require.Equal(t, "Checking", attrStr(t, got, "name"))
	require.Equal(t, want, attrStr(t, got, AttrCreatedAt))
}

func TestPutPreservesCreatedAt(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	item := testItem("USER#1", "ACCOUNT#1", map[string]types.AttributeValue{
		AttrCreatedAt: str("2020-01-01T00:00:00Z"),
	})
	stored, err := repo.Put(ctx, item)
	require.NoError(t, err)
	require.Equal(t, "2020-01-01T00:00:00Z", attrStr(t, stored, AttrCreatedAt))
	require.Equal(t, frozenTime.Format(time.RFC3339Nano), attrStr(t, stored, AttrUpdatedAt))
}

func TestPutRejectsMissingKeys(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Put(context.Background(), Item{"name": str("orphan")})
	require.True(t, ddberr.IsValidation(err))
}

func TestGetMissingIsNilNil(t *testing.T) {
	repo, _ := newTestRepo(t)
	got, err := repo.Get(context.Background(), Key{PK: "USER#1", SK: "ACCOUNT#404"})
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = repo.Get(context.Background(), Key{PK: "USER#1"})
	require.True(t, ddberr.IsValidation(err))
}

func TestUpdateMerges(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Put(ctx, testItem("USER#1", "ACCOUNT#1", map[string]types.AttributeValue{
		"name":    str("Checking"),
		"balance": num("100"),
	}))
	require.NoError(t, err)

	// Facade-owned fields in attrs are dropped, not written. A
	// marshalled entity always carries updatedAt, so letting it through
	// would put the same document path in the SET clause twice and the
	// store rejects that.
	updated, err := repo.Update(ctx, Key{PK: "USER#1", SK: "ACCOUNT#1"}, map[string]any{
		"name":         "Joint Checking",
		"pk":           "USER#evil",
		AttrCreatedAt:  "1970-01-01T00:00:00Z",
		AttrUpdatedAt:  "1970-01-01T00:00:00Z",
		AttrEntityType: "evil",
	})
	require.NoError(t, err)
	require.Equal(t, "Joint Checking", attrStr(t, updated, "name"))
	require.Equal(t, "100", updated["balance"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "USER#1", attrStr(t, updated, "pk"))
	require.Equal(t, frozenTime.Format(time.RFC3339Nano), attrStr(t, updated, AttrCreatedAt))
	require.Equal(t, frozenTime.Format(time.RFC3339Nano), attrStr(t, updated, AttrUpdatedAt))

	require.Len(t, client.updates, 1)
	input := client.updates[0]
	require.Zero(t, setTargets(*input.UpdateExpression, input.ExpressionAttributeNames, "pk"))
	require.Zero(t, setTargets(*input.UpdateExpression, input.ExpressionAttributeNames, AttrCreatedAt))
	require.Equal(t, 1, setTargets(*input.UpdateExpression, input.ExpressionAttributeNames, AttrUpdatedAt))
	require.Equal(t, 1, setTargets(*input.UpdateExpression, input.ExpressionAttributeNames, "name"))
}

// setTargets counts how often an attribute appears as a SET target in
// the update expression. More than once is an overlapping document
// path, which DynamoDB rejects.
func setTargets(expr string, names map[string]string, attr string) int {
	var n int
	for placeholder, name := range names {
		if name == attr {
			n += strings.Count(expr, placeholder+" =")
		}
	}
	return n
}

func TestUpdateMissingNeverCreates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	key := Key{PK: "USER#1", SK: "ACCOUNT#404"}
	_, err := repo.Update(ctx, key, map[string]any{"name": "ghost"})
	require.True(t, ddberr.IsConditionFailed(err))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUpdateEmptyAttrsRejectedBeforeStore(t *testing.T) {
	repo, client := newTestRepo(t)
	_, err := repo.Update(context.Background(), Key{PK: "USER#1", SK: "ACCOUNT#1"}, nil)
	require.True(t, ddberr.IsValidation(err))
	require.Empty(t, client.updates)
}

func TestUpdateCallerCondition(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Put(ctx, testItem("USER#1", "ACCOUNT#1", map[string]types.AttributeValue{
		"balance": num("100"),
	}))
	require.NoError(t, err)

	key := Key{PK: "USER#1", SK: "ACCOUNT#1"}
	guard := expression.Name("balance").Equal(expression.Value(999))
	_, err = repo.Update(ctx, key, map[string]any{"balance": 200}, guard)
	require.True(t, ddberr.IsConditionFailed(err))

	guard = expression.Name("balance").Equal(expression.Value(100))
	updated, err := repo.Update(ctx, key, map[string]any{"balance": 200}, guard)
	require.NoError(t, err)
	require.Equal(t, "200", updated["balance"].(*types.AttributeValueMemberN).Value)
}

func TestUpdateChainedConditions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Put(ctx, testItem("USER#1", "ACCOUNT#1", map[string]types.AttributeValue{
		"balance":  num("100"),
		"currency": str("EUR"),
	}))
	require.NoError(t, err)

	// Two caller guards nest with the existence precondition as
	// ((exists AND a) AND b); all three must hold.
	key := Key{PK: "USER#1", SK: "ACCOUNT#1"}
	balanceIs := expression.Name("balance").Equal(expression.Value(100))
	currencyIs := expression.Name("currency").Equal(expression.Value("EUR"))
	updated, err := repo.Update(ctx, key, map[string]any{"balance": 50}, balanceIs, currencyIs)
	require.NoError(t, err)
	require.Equal(t, "50", updated["balance"].(*types.AttributeValueMemberN).Value)

	wrongCurrency := expression.Name("currency").Equal(expression.Value("SEK"))
	_, err = repo.Update(ctx, key, map[string]any{"balance": 0},
		expression.Name("balance").Equal(expression.Value(50)), wrongCurrency)
	require.True(t, ddberr.IsConditionFailed(err))
}

func TestDeleteRequiresExistence(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	key := Key{PK: "USER#1", SK: "ACCOUNT#1"}
	_, err := repo.Put(ctx, testItem(key.PK, key.SK, nil))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, key))
	err = repo.Delete(ctx, key)
	require.True(t, ddberr.IsConditionFailed(err))
}

func TestExists(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	key := Key{PK: "USER#1", SK: "ACCOUNT#1"}

	ok, err := repo.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = repo.Put(ctx, testItem(key.PK, key.SK, nil))
	require.NoError(t, err)

	ok, err = repo.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete(ctx, key))
	ok, err = repo.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func seedPartition(t *testing.T, repo *Repository, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, err := repo.Put(ctx, testItem("USER#1", fmt.Sprintf("TXN#2026-08-%02d", i), map[string]types.AttributeValue{
			"amount": num(fmt.Sprintf("%d", i*100)),
			"gsi1pk": str("ACCOUNT#1"),
			"gsi1sk": str(fmt.Sprintf("TXN#2026-08-%02d", i)),
		}))
		require.NoError(t, err)
	}
}

func TestQueryNoMatchIsEmptyNonNil(t *testing.T) {
	repo, _ := newTestRepo(t)
	items, err := repo.Query(context.Background(), Query{PartitionValue: "USER#404"})
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestQueryValidation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Query(ctx, Query{})
	require.True(t, ddberr.IsValidation(err))

	_, err = repo.Query(ctx, Query{PartitionValue: "USER#1", SortValue: "a", SortPrefix: "b"})
	require.True(t, ddberr.IsValidation(err))

	_, err = repo.Query(ctx, Query{PartitionValue: "USER#1", Index: "gsi9"})
	require.True(t, ddberr.IsValidation(err))
}

func TestQueryPrefixOrderAndLimit(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 5)

	items, err := repo.Query(ctx, Query{PartitionValue: "USER#1", SortPrefix: "TXN#"})
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, "TXN#2026-08-01", attrStr(t, items[0], "sk"))
	require.Equal(t, "TXN#2026-08-05", attrStr(t, items[4], "sk"))

	items, err = repo.Query(ctx, Query{PartitionValue: "USER#1", SortPrefix: "TXN#", Descending: true})
	require.NoError(t, err)
	require.Equal(t, "TXN#2026-08-05", attrStr(t, items[0], "sk"))

	items, err = repo.Query(ctx, Query{PartitionValue: "USER#1", SortPrefix: "TXN#", Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)

	items, err = repo.Query(ctx, Query{PartitionValue: "USER#1", SortValue: "TXN#2026-08-03"})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestQueryPagePagination(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 5)

	q := Query{PartitionValue: "USER#1", SortPrefix: "TXN#", Limit: 2}
	var seen []string
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")
		page, err := repo.QueryPage(ctx, q)
		require.NoError(t, err)
		for _, item := range page.Items {
			seen = append(seen, attrStr(t, item, "sk"))
		}
		if page.LastKey == nil {
			break
		}
		q.StartKey = page.LastKey
	}
	require.Equal(t, []string{
		"TXN#2026-08-01", "TXN#2026-08-02", "TXN#2026-08-03", "TXN#2026-08-04", "TXN#2026-08-05",
	}, seen)
}

func TestQueryFilterAndGSI(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 5)

	items, err := repo.Query(ctx, Query{
		PartitionValue: "USER#1",
		SortPrefix:     "TXN#",
		Filter:         expression.Name("amount").GreaterThanEqual(expression.Value(300)),
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	items, err = repo.Query(ctx, Query{Index: "gsi1", PartitionValue: "ACCOUNT#1"})
	require.NoError(t, err)
	require.Len(t, items, 5)
}

func TestCount(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 5)

	n, err := repo.Count(ctx, Query{PartitionValue: "USER#1", SortPrefix: "TXN#"})
	require.NoError(t, err)
	require.Equal(t, int32(5), n)

	n, err = repo.Count(ctx, Query{PartitionValue: "USER#404"})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBatchWriteChunks(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()

	items := make([]Item, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, testItem("USER#1", fmt.Sprintf("TXN#%03d", i), nil))
	}
	res, err := repo.BatchWrite(ctx, items)
	require.NoError(t, err)
	require.True(t, res.Done())
	require.NoError(t, res.Err())
	require.Equal(t, 2, res.Calls)
	require.Equal(t, 2, client.batchWrites)

	n, err := repo.Count(ctx, Query{PartitionValue: "USER#1"})
	require.NoError(t, err)
	require.Equal(t, int32(30), n)
}

func TestBatchWriteEmpty(t *testing.T) {
	repo, client := newTestRepo(t)
	res, err := repo.BatchWrite(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, res.Done())
	require.Zero(t, res.Calls)
	require.Zero(t, client.batchWrites)
}

func TestBatchWriteStamps(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.BatchWrite(ctx, []Item{testItem("USER#1", "ACCOUNT#1", nil)})
	require.NoError(t, err)

	got, err := repo.Get(ctx, Key{PK: "USER#1", SK: "ACCOUNT#1"})
	require.NoError(t, err)
	require.Equal(t, frozenTime.Format(time.RFC3339Nano), attrStr(t, got, AttrCreatedAt))
}

func TestBatchDeleteIgnoresMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 3)

	res, err := repo.BatchDelete(ctx, []Key{
		{PK: "USER#1", SK: "TXN#2026-08-01"},
		{PK: "USER#1", SK: "TXN#2026-08-02"},
		{PK: "USER#1", SK: "TXN#2026-08-99"}, // missing: no error
	})
	require.NoError(t, err)
	require.True(t, res.Done())

	n, err := repo.Count(ctx, Query{PartitionValue: "USER#1"})
	require.NoError(t, err)
	require.Equal(t, int32(1), n)
}

func TestBatchGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedPartition(t, repo, 3)

	res, err := repo.BatchGet(ctx, []Key{
		{PK: "USER#1", SK: "TXN#2026-08-01"},
		{PK: "USER#1", SK: "TXN#2026-08-03"},
		{PK: "USER#1", SK: "TXN#2026-08-99"}, // missing: absent from result
	})
	require.NoError(t, err)
	require.True(t, res.Done())
	require.Len(t, res.Items, 2)
}

func TestTransactWriteApplies(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Put(ctx, testItem("USER#1", "DEBT#1", map[string]types.AttributeValue{
		"status": str("open"),
	}))
	require.NoError(t, err)

	err = repo.TransactWrite(ctx, []TransactOp{
		TransactPut(testItem("USER#1", "TXN#settle", nil)),
		TransactUpdate(Key{PK: "USER#1", SK: "DEBT#1"}, map[string]any{"status": "settled"}),
	})
	require.NoError(t, err)
	require.Equal(t, 1, client.transacts)

	got, err := repo.Get(ctx, Key{PK: "USER#1", SK: "DEBT#1"})
	require.NoError(t, err)
	require.Equal(t, "settled", attrStr(t, got, "status"))

	got, err = repo.Get(ctx, Key{PK: "USER#1", SK: "TXN#settle"})
	require.NoError(t, err)
	require.Equal(t, frozenTime.Format(time.RFC3339Nano), attrStr(t, got, AttrCreatedAt))
}

func TestTransactWriteAtomicAbort(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Put(ctx, testItem("USER#1", "ACCOUNT#1", nil))
	require.NoError(t, err)

	// The update targets a missing item, so its implicit existence
	// precondition cancels the transaction. Nothing is applied: the
	// put's item never appears and the delete's item survives.
	err = repo.TransactWrite(ctx, []TransactOp{
		TransactPut(testItem("USER#1", "TXN#1", nil)),
		TransactUpdate(Key{PK: "USER#1", SK: "DEBT#404"}, map[string]any{"status": "settled"}),
		TransactDelete(Key{PK: "USER#1", SK: "ACCOUNT#1"}),
	})
	require.True(t, ddberr.IsConditionFailed(err))

	for _, sk := range []string{"TXN#1", "DEBT#404"} {
		got, err := repo.Get(ctx, Key{PK: "USER#1", SK: sk})
		require.NoError(t, err)
		require.Nil(t, got, "item %s must not exist after aborted transaction", sk)
	}
	got, err := repo.Get(ctx, Key{PK: "USER#1", SK: "ACCOUNT#1"})
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestTransactWriteRejectsDuplicateTargets(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()

	// The store refuses two operations on one item; the facade fails
	// fast without a round-trip.
	err := repo.TransactWrite(ctx, []TransactOp{
		TransactPut(testItem("USER#1", "TXN#1", nil)),
		TransactDelete(Key{PK: "USER#1", SK: "TXN#1"}),
	})
	require.True(t, ddberr.IsValidation(err))
	require.Zero(t, client.transacts)

	err = repo.TransactWrite(ctx, []TransactOp{
		TransactUpdate(Key{PK: "USER#1", SK: "DEBT#1"}, map[string]any{"status": "open"}),
		TransactUpdate(Key{PK: "USER#1", SK: "DEBT#1"}, map[string]any{"status": "settled"}),
	})
	require.True(t, ddberr.IsValidation(err))
	require.Zero(t, client.transacts)
}

func TestTransactWriteValidation(t *testing.T) {
	repo, client := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.TransactWrite(ctx, nil))
	require.Zero(t, client.transacts)

	ops := make([]TransactOp, MaxTransactItems+1)
	for i := range ops {
		ops[i] = TransactPut(testItem("USER#1", fmt.Sprintf("TXN#%03d", i), nil))
	}
	err := repo.TransactWrite(ctx, ops)
	require.True(t, ddberr.IsValidation(err))
	require.Zero(t, client.transacts)

	err = repo.TransactWrite(ctx, []TransactOp{{Kind: "MERGE"}})
	require.True(t, ddberr.IsValidation(err))
}

func TestTransactWriteCallerCondition(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Create-if-absent via a conditioned put inside a transaction.
	op := TransactPut(testItem("USER#1", "ACCOUNT#1", nil)).
		WithCondition(expression.AttributeNotExists(expression.Name("pk")))
	require.NoError(t, repo.TransactWrite(ctx, []TransactOp{op}))

	err := repo.TransactWrite(ctx, []TransactOp{op})
	require.True(t, ddberr.IsConditionFailed(err))
}
