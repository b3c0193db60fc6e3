package budget

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddberr"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
)

// DebtShare status values.
const (
	DebtOpen    = "open"
	DebtSettled = "settled"
)

// ErrAlreadySettled is returned when settling a debt that was settled
// before, so double-settlement is visible to the caller.
var ErrAlreadySettled = fmt.Errorf("budget: debt already settled")

// DebtShare is one person's share of a split expense: the counterparty
// owes the user Amount until the share is settled.
type DebtShare struct {
	ID           string `dynamodbav:"id"`
	UserID       string `dynamodbav:"userId"`
	Counterparty string `dynamodbav:"counterparty"`
	Amount       int64  `dynamodbav:"amount"`
	Description  string `dynamodbav:"description,omitempty"`
	Status       string `dynamodbav:"status"`
	SettledDate  string `dynamodbav:"settledDate,omitempty"`
	CreatedAt    string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt    string `dynamodbav:"updatedAt,omitempty"`
}

func debtKey(userID, debtID string) (ddbrepo.Key, error) {
	pk, err := userPK(userID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	sk, err := keys.Encode(TagDebt, debtID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	return ddbrepo.Key{PK: pk, SK: sk}, nil
}

// AddDebtShare records a new open share.
func (s *Service) AddDebtShare(ctx context.Context, userID, counterparty, description string, amount int64) (DebtShare, error) {
	if counterparty == "" {
		return DebtShare{}, fmt.Errorf("budget: debt counterparty is required")
	}
	if amount <= 0 {
		return DebtShare{}, fmt.Errorf("budget: debt amount must be positive, got %d", amount)
	}
	debt := DebtShare{
		ID:           s.newID(),
		UserID:       userID,
		Counterparty: counterparty,
		Amount:       amount,
		Description:  description,
		Status:       DebtOpen,
	}
	key, err := debtKey(userID, debt.ID)
	if err != nil {
		return DebtShare{}, err
	}
	item, err := marshalEntity(debt, TypeDebtShare, key.PK, key.SK)
	if err != nil {
		return DebtShare{}, err
	}
	stored, err := s.repo.Put(ctx, item)
	if err != nil {
		return DebtShare{}, err
	}
	return unmarshalEntity[DebtShare](stored)
}

// GetDebtShare fetches one share, ErrNotFound when absent.
func (s *Service) GetDebtShare(ctx context.Context, userID, debtID string) (DebtShare, error) {
	key, err := debtKey(userID, debtID)
	if err != nil {
		return DebtShare{}, err
	}
	return getEntity[DebtShare](ctx, s, key)
}

// ListOpenDebts returns the user's unsettled shares.
func (s *Service) ListOpenDebts(ctx context.Context, userID string) ([]DebtShare, error) {
	pk, err := userPK(userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		PartitionValue: pk,
		SortPrefix:     TagDebt + keys.Separator,
		Filter:         expression.Name("status").Equal(expression.Value(DebtOpen)),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[DebtShare](items)
}

// SettleDebtShare marks the share settled and records the incoming
// repayment on the given account in one atomic write: either the debt
// flips from open to settled AND the repayment transaction lands AND
// the account balance moves, or none of it happens. Settling twice
// fails with ErrAlreadySettled.
func (s *Service) SettleDebtShare(ctx context.Context, userID, debtID, accountID, date string) (Transaction, error) {
	if err := validDate(date); err != nil {
		return Transaction{}, err
	}
	debt, err := s.GetDebtShare(ctx, userID, debtID)
	if err != nil {
		return Transaction{}, err
	}
	if debt.Status == DebtSettled {
		return Transaction{}, ErrAlreadySettled
	}
	acct, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return Transaction{}, err
	}

	repayment := Transaction{
		ID:        s.newID(),
		UserID:    userID,
		AccountID: accountID,
		Date:      date,
		Amount:    debt.Amount,
		Category:  "debt-repayment",
		Note:      fmt.Sprintf("settles %s from %s", debt.Description, debt.Counterparty),
	}
	item, err := transactionItem(repayment)
	if err != nil {
		return Transaction{}, err
	}
	dKey, err := debtKey(userID, debtID)
	if err != nil {
		return Transaction{}, err
	}
	aKey, err := accountKey(userID, accountID)
	if err != nil {
		return Transaction{}, err
	}

	stillOpen := expression.Name("status").Equal(expression.Value(DebtOpen))
	balanceGuard := expression.Name("balance").Equal(expression.Value(acct.Balance))
	err = s.repo.TransactWrite(ctx, []ddbrepo.TransactOp{
		ddbrepo.TransactUpdate(dKey, map[string]any{
			"status":      DebtSettled,
			"settledDate": date,
		}).WithCondition(stillOpen),
		ddbrepo.TransactPut(item),
		ddbrepo.TransactUpdate(aKey, map[string]any{
			"balance": acct.Balance + debt.Amount,
		}).WithCondition(balanceGuard),
	})
	if ddberr.IsConditionFailed(err) {
		// Either another settle won or the balance moved underneath us.
		// Re-reading the debt tells the two apart.
		if current, rerr := s.GetDebtShare(ctx, userID, debtID); rerr == nil && current.Status == DebtSettled {
			return Transaction{}, ErrAlreadySettled
		}
		return Transaction{}, fmt.Errorf("budget: settle %s: %w", debtID, err)
	}
	if err != nil {
		return Transaction{}, err
	}
	return repayment, nil
}
