package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
)

// Recurring is a monthly transaction template: rent, salary,
// subscriptions. Materializing a month stamps one concrete transaction
// per template onto its day of month.
type Recurring struct {
	ID         string `dynamodbav:"id"`
	UserID     string `dynamodbav:"userId"`
	AccountID  string `dynamodbav:"accountId"`
	DayOfMonth int    `dynamodbav:"dayOfMonth"`
	Amount     int64  `dynamodbav:"amount"`
	Category   string `dynamodbav:"category"`
	Note       string `dynamodbav:"note,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt  string `dynamodbav:"updatedAt,omitempty"`
}

func recurringKey(userID, recurID string) (ddbrepo.Key, error) {
	pk, err := userPK(userID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	sk, err := keys.Encode(TagRecurring, recurID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	return ddbrepo.Key{PK: pk, SK: sk}, nil
}

// AddRecurring stores a new template.
func (s *Service) AddRecurring(ctx context.Context, rec Recurring) (Recurring, error) {
	if rec.DayOfMonth < 1 || rec.DayOfMonth > 28 {
		// Clamp to days every month has; the 29th-31st would silently
		// skip short months.
		return Recurring{}, fmt.Errorf("budget: day of month must be 1-28, got %d", rec.DayOfMonth)
	}
	if rec.AccountID == "" {
		return Recurring{}, fmt.Errorf("budget: recurring needs an account")
	}
	rec.ID = s.newID()
	key, err := recurringKey(rec.UserID, rec.ID)
	if err != nil {
		return Recurring{}, err
	}
	item, err := marshalEntity(rec, TypeRecurring, key.PK, key.SK)
	if err != nil {
		return Recurring{}, err
	}
	stored, err := s.repo.Put(ctx, item)
	if err != nil {
		return Recurring{}, err
	}
	return unmarshalEntity[Recurring](stored)
}

// ListRecurring returns all of the user's templates.
func (s *Service) ListRecurring(ctx context.Context, userID string) ([]Recurring, error) {
	pk, err := userPK(userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		PartitionValue: pk,
		SortPrefix:     TagRecurring + keys.Separator,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[Recurring](items)
}

// DeleteRecurring removes a template. Already-materialized
// transactions are untouched.
func (s *Service) DeleteRecurring(ctx context.Context, userID, recurID string) error {
	key, err := recurringKey(userID, recurID)
	if err != nil {
		return err
	}
	return notFoundOnCondition(s.repo.Delete(ctx, key))
}

// maxMaterializeRetries bounds re-submission of throttled batch writes.
const maxMaterializeRetries = 4

// MaterializeMonth stamps one transaction per template onto the given
// YYYY-MM month, writing them in one batched pass. The transaction ID
// is derived from the template and month, so running a month twice
// overwrites the same items instead of duplicating them. Account
// balances are not adjusted here; materialized months are reconciled
// like imported statements.
func (s *Service) MaterializeMonth(ctx context.Context, userID, month string) ([]Transaction, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}
	templates, err := s.ListRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return []Transaction{}, nil
	}

	txns := make([]Transaction, 0, len(templates))
	items := make([]ddbrepo.Item, 0, len(templates))
	for _, rec := range templates {
		txn := Transaction{
			ID:        fmt.Sprintf("recur-%s-%s", rec.ID, month),
			UserID:    userID,
			AccountID: rec.AccountID,
			Date:      fmt.Sprintf("%s-%02d", month, rec.DayOfMonth),
			Amount:    rec.Amount,
			Category:  rec.Category,
			Note:      rec.Note,
		}
		item, err := transactionItem(txn)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
		items = append(items, item)
	}
	if err := s.repo.BatchWriteRetry(ctx, items, maxMaterializeRetries); err != nil {
		return nil, err
	}
	return txns, nil
}

// NextOccurrence returns the next date the template fires on or after
// the given day.
func (r Recurring) NextOccurrence(after time.Time) time.Time {
	next := time.Date(after.Year(), after.Month(), r.DayOfMonth, 0, 0, 0, 0, time.UTC)
	if next.Before(after.Truncate(24 * time.Hour)) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}
