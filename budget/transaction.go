package budget

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
)

// Transaction is one money movement on an account. Amount is signed
// minor units: negative spends, positive receives. Date is YYYY-MM-DD
// and is part of the sort key, so partition queries come back in date
// order.
type Transaction struct {
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"userId"`
	AccountID string `dynamodbav:"accountId"`
	Date      string `dynamodbav:"date"`
	Amount    int64  `dynamodbav:"amount"`
	Category  string `dynamodbav:"category"`
	Note      string `dynamodbav:"note,omitempty"`
	CreatedAt string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updatedAt,omitempty"`
}

func transactionKey(userID, date, txnID string) (ddbrepo.Key, error) {
	pk, err := userPK(userID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	sk, err := keys.Encode(TagTransaction, date, txnID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	return ddbrepo.Key{PK: pk, SK: sk}, nil
}

// transactionItem marshals a transaction with its gsi1 keys, so the
// per-account index sees it under "ACCOUNT#<id>".
func transactionItem(txn Transaction) (ddbrepo.Item, error) {
	key, err := transactionKey(txn.UserID, txn.Date, txn.ID)
	if err != nil {
		return nil, err
	}
	item, err := marshalEntity(txn, TypeTransaction, key.PK, key.SK)
	if err != nil {
		return nil, err
	}
	item["gsi1pk"] = &types.AttributeValueMemberS{Value: keys.MustEncode(TagAccount, txn.AccountID)}
	item["gsi1sk"] = &types.AttributeValueMemberS{Value: key.SK}
	return item, nil
}

// AddTransaction records a money movement and moves the account balance
// in the same atomic write. The balance update is guarded on the
// balance observed just before, so a concurrent movement forces a
// conditional-check failure instead of a lost update; callers retry.
func (s *Service) AddTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	if err := validDate(txn.Date); err != nil {
		return Transaction{}, err
	}
	if txn.AccountID == "" {
		return Transaction{}, fmt.Errorf("budget: transaction needs an account")
	}
	acct, err := s.GetAccount(ctx, txn.UserID, txn.AccountID)
	if err != nil {
		return Transaction{}, err
	}

	txn.ID = s.newID()
	item, err := transactionItem(txn)
	if err != nil {
		return Transaction{}, err
	}
	acctKey, err := accountKey(txn.UserID, txn.AccountID)
	if err != nil {
		return Transaction{}, err
	}

	guard := expression.Name("balance").Equal(expression.Value(acct.Balance))
	err = s.repo.TransactWrite(ctx, []ddbrepo.TransactOp{
		ddbrepo.TransactPut(item),
		ddbrepo.TransactUpdate(acctKey, map[string]any{
			"balance": acct.Balance + txn.Amount,
		}).WithCondition(guard),
	})
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// GetTransaction fetches one transaction by its date and ID.
func (s *Service) GetTransaction(ctx context.Context, userID, date, txnID string) (Transaction, error) {
	key, err := transactionKey(userID, date, txnID)
	if err != nil {
		return Transaction{}, err
	}
	return getEntity[Transaction](ctx, s, key)
}

// ListTransactionsByMonth returns the user's transactions for one
// YYYY-MM month, oldest first.
func (s *Service) ListTransactionsByMonth(ctx context.Context, userID, month string) ([]Transaction, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}
	pk, err := userPK(userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		PartitionValue: pk,
		SortPrefix:     TagTransaction + keys.Separator + month,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[Transaction](items)
}

// ListAccountTransactions returns an account's transactions via the
// gsi1 index, newest first.
func (s *Service) ListAccountTransactions(ctx context.Context, accountID string, limit int32) ([]Transaction, error) {
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		Index:          GSI1,
		PartitionValue: keys.MustEncode(TagAccount, accountID),
		Descending:     true,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[Transaction](items)
}

// DeleteTransaction removes a transaction and restores the account
// balance atomically, mirroring AddTransaction.
func (s *Service) DeleteTransaction(ctx context.Context, userID, date, txnID string) error {
	txn, err := s.GetTransaction(ctx, userID, date, txnID)
	if err != nil {
		return err
	}
	acct, err := s.GetAccount(ctx, userID, txn.AccountID)
	if err != nil {
		return err
	}
	key, err := transactionKey(userID, date, txnID)
	if err != nil {
		return err
	}
	acctKey, err := accountKey(userID, txn.AccountID)
	if err != nil {
		return err
	}

	guard := expression.Name("balance").Equal(expression.Value(acct.Balance))
	return s.repo.TransactWrite(ctx, []ddbrepo.TransactOp{
		ddbrepo.TransactDelete(key),
		ddbrepo.TransactUpdate(acctKey, map[string]any{
			"balance": acct.Balance - txn.Amount,
		}).WithCondition(guard),
	})
}
