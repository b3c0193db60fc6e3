package budget

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// CategorySpend pairs a plan's cap with what was actually spent.
// Spent counts only negative transaction amounts, as positive values.
type CategorySpend struct {
	Category string
	Limit    int64
	Spent    int64
	Over     bool
}

// Overview is the month-at-a-glance summary the dashboard renders.
type Overview struct {
	Month        string
	NetWorth     int64
	Accounts     []Account
	Transactions []Transaction
	Categories   []CategorySpend
	OpenDebts    []DebtShare
	OwedToUser   int64
}

// MonthOverview assembles the dashboard for one month. The four
// partition reads are independent, so they fan out concurrently; the
// first failure cancels the rest.
func (s *Service) MonthOverview(ctx context.Context, userID, month string) (*Overview, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}

	var (
		accounts []Account
		txns     []Transaction
		plans    []Plan
		debts    []DebtShare
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.ListAccounts(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		txns, err = s.ListTransactionsByMonth(ctx, userID, month)
		return err
	})
	g.Go(func() (err error) {
		plans, err = s.ListPlans(ctx, userID, month)
		return err
	})
	g.Go(func() (err error) {
		debts, err = s.ListOpenDebts(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o := &Overview{
		Month:        month,
		Accounts:     accounts,
		Transactions: txns,
		OpenDebts:    debts,
		Categories:   categorySpend(plans, txns),
	}
	for _, a := range accounts {
		o.NetWorth += a.Balance
	}
	for _, d := range debts {
		o.OwedToUser += d.Amount
	}
	return o, nil
}

// categorySpend folds the month's spending into the planned caps.
// Categories with spending but no plan still show up, with a zero cap.
func categorySpend(plans []Plan, txns []Transaction) []CategorySpend {
	byCategory := make(map[string]*CategorySpend)
	for _, p := range plans {
		byCategory[p.Category] = &CategorySpend{Category: p.Category, Limit: p.Limit}
	}
	for _, t := range txns {
		if t.Amount >= 0 || t.Category == "" {
			continue
		}
		c, ok := byCategory[t.Category]
		if !ok {
			c = &CategorySpend{Category: t.Category}
			byCategory[t.Category] = c
		}
		c.Spent += -t.Amount
	}

	out := make([]CategorySpend, 0, len(byCategory))
	for _, c := range byCategory {
		c.Over = c.Limit > 0 && c.Spent > c.Limit
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
