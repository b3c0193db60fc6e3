package budget

import (
	"context"
	"fmt"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
)

// Account is a money container: a bank account, a card, cash. Balance
// is in minor units (cents) and only moves through transactions.
type Account struct {
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"userId"`
	Name      string `dynamodbav:"name"`
	Currency  string `dynamodbav:"currency"`
	Balance   int64  `dynamodbav:"balance"`
	CreatedAt string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updatedAt,omitempty"`
}

func accountKey(userID, accountID string) (ddbrepo.Key, error) {
	pk, err := userPK(userID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	sk, err := keys.Encode(TagAccount, accountID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	return ddbrepo.Key{PK: pk, SK: sk}, nil
}

// CreateAccount stores a new account with a generated ID and zero or
// caller-provided opening balance.
func (s *Service) CreateAccount(ctx context.Context, userID, name, currency string, openingBalance int64) (Account, error) {
	if name == "" {
		return Account{}, fmt.Errorf("budget: account name is required")
	}
	acct := Account{
		ID:       s.newID(),
		UserID:   userID,
		Name:     name,
		Currency: currency,
		Balance:  openingBalance,
	}
	key, err := accountKey(userID, acct.ID)
	if err != nil {
		return Account{}, err
	}
	item, err := marshalEntity(acct, TypeAccount, key.PK, key.SK)
	if err != nil {
		return Account{}, err
	}
	stored, err := s.repo.Put(ctx, item)
	if err != nil {
		return Account{}, err
	}
	return unmarshalEntity[Account](stored)
}

// GetAccount fetches one account, ErrNotFound when absent.
func (s *Service) GetAccount(ctx context.Context, userID, accountID string) (Account, error) {
	key, err := accountKey(userID, accountID)
	if err != nil {
		return Account{}, err
	}
	return getEntity[Account](ctx, s, key)
}

// ListAccounts returns all of the user's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	pk, err := userPK(userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		PartitionValue: pk,
		SortPrefix:     TagAccount + keys.Separator,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[Account](items)
}

// RenameAccount updates the display name of an existing account.
func (s *Service) RenameAccount(ctx context.Context, userID, accountID, name string) (Account, error) {
	if name == "" {
		return Account{}, fmt.Errorf("budget: account name is required")
	}
	key, err := accountKey(userID, accountID)
	if err != nil {
		return Account{}, err
	}
	item, err := s.repo.Update(ctx, key, map[string]any{"name": name})
	if err != nil {
		return Account{}, notFoundOnCondition(err)
	}
	return unmarshalEntity[Account](item)
}

// DeleteAccount removes the account. Its transactions are kept; they
// still reference the account ID for history.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) error {
	key, err := accountKey(userID, accountID)
	if err != nil {
		return err
	}
	return notFoundOnCondition(s.repo.Delete(ctx, key))
}
