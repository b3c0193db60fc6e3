// Package budget implements the personal-finance domain on top of the
// single-table storage facade: accounts, transactions, monthly category
// budgets, shared-expense debts and recurring transactions, all living
// in one user-partitioned DynamoDB table.
//
// Every entity is scoped to a user: the partition key is "USER#<id>"
// and the sort key encodes the entity type and identity, so one query
// per partition serves each listing. Transactions carry gsi1 keys for
// the per-account view.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// TableName is the default production table.
const TableName = "personal-budget"

// GSI1 is the account-scoped transaction index.
const GSI1 = "gsi1"

// Key string tags. See the keys package for the composite format.
const (
	TagUser        = "USER"
	TagAccount     = "ACCOUNT"
	TagTransaction = "TXN"
	TagBudget      = "BUDGET"
	TagDebt        = "DEBT"
	TagRecurring   = "RECUR"
)

// entityType discriminator values stored on every item.
const (
	TypeAccount     = "account"
	TypeTransaction = "transaction"
	TypeBudget      = "budget"
	TypeDebtShare   = "debtShare"
	TypeRecurring   = "recurring"
)

// ErrNotFound is returned by single-entity lookups when the key has no
// item. Callers branch on it with errors.Is.
var ErrNotFound = errors.New("budget: not found")

// Table returns the canonical table definition the domain operates on.
func Table() table.Definition {
	return table.Definition{
		Name: TableName,
		Keys: table.KeyNames{PartitionKey: "pk", SortKey: "sk"},
		GSIs: []table.GSI{
			{Name: GSI1, Keys: table.KeyNames{PartitionKey: "gsi1pk", SortKey: "gsi1sk"}},
		},
	}
}

// Service exposes the domain operations. It is stateless apart from its
// storage facade and safe for concurrent use.
type Service struct {
	repo  *ddbrepo.Repository
	newID func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides entity ID generation. Tests use it for
// deterministic keys.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService builds the domain service over a storage facade bound to a
// table shaped like Table().
func NewService(repo *ddbrepo.Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:  repo,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userPK(userID string) (string, error) {
	return keys.Encode(TagUser, userID)
}

// validMonth accepts "2006-01" strings.
func validMonth(month string) error {
	if _, err := time.Parse("2006-01", month); err != nil {
		return fmt.Errorf("budget: month %q is not YYYY-MM: %w", month, err)
	}
	return nil
}

// validDate accepts "2006-01-02" strings.
func validDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("budget: date %q is not YYYY-MM-DD: %w", date, err)
	}
	return nil
}

// marshalEntity turns an entity struct into a storable item: the
// attributevalue map plus keys and the entityType discriminator.
func marshalEntity(v any, entityType, pk, sk string) (ddbrepo.Item, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("budget: marshal %s: %w", entityType, err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: pk}
	item["sk"] = &types.AttributeValueMemberS{Value: sk}
	item[ddbrepo.AttrEntityType] = &types.AttributeValueMemberS{Value: entityType}
	return item, nil
}

func unmarshalEntity[T any](item ddbrepo.Item) (T, error) {
	var v T
	if err := attributevalue.UnmarshalMap(item, &v); err != nil {
		return v, fmt.Errorf("budget: unmarshal item: %w", err)
	}
	return v, nil
}

func unmarshalEntities[T any](items []ddbrepo.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := unmarshalEntity[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// notFoundOnCondition translates the storage layer's existence
// precondition failure into the domain's ErrNotFound. Only used on
// operations that carry no caller-supplied conditions.
func notFoundOnCondition(err error) error {
	if ddberr.IsConditionFailed(err) {
		return ErrNotFound
	}
	return err
}

// getEntity is the shared miss-to-ErrNotFound lookup.
func getEntity[T any](ctx context.Context, s *Service, key ddbrepo.Key) (T, error) {
	var zero T
	item, err := s.repo.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if item == nil {
		return zero, ErrNotFound
	}
	return unmarshalEntity[T](item)
}
