package budget

import (
	"context"
	"fmt"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/keys"
)

// Plan is a monthly spending cap for one category, keyed by month and
// category so setting it again overwrites the previous cap.
type Plan struct {
	UserID    string `dynamodbav:"userId"`
	Month     string `dynamodbav:"month"`
	Category  string `dynamodbav:"category"`
	Limit     int64  `dynamodbav:"limit"`
	CreatedAt string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updatedAt,omitempty"`
}

func planKey(userID, month, category string) (ddbrepo.Key, error) {
	pk, err := userPK(userID)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	sk, err := keys.Encode(TagBudget, month, category)
	if err != nil {
		return ddbrepo.Key{}, err
	}
	return ddbrepo.Key{PK: pk, SK: sk}, nil
}

// SetPlan creates or replaces the cap for a month and category.
func (s *Service) SetPlan(ctx context.Context, plan Plan) (Plan, error) {
	if err := validMonth(plan.Month); err != nil {
		return Plan{}, err
	}
	if plan.Category == "" {
		return Plan{}, fmt.Errorf("budget: plan category is required")
	}
	if plan.Limit <= 0 {
		return Plan{}, fmt.Errorf("budget: plan limit must be positive, got %d", plan.Limit)
	}
	key, err := planKey(plan.UserID, plan.Month, plan.Category)
	if err != nil {
		return Plan{}, err
	}
	item, err := marshalEntity(plan, TypeBudget, key.PK, key.SK)
	if err != nil {
		return Plan{}, err
	}
	stored, err := s.repo.Put(ctx, item)
	if err != nil {
		return Plan{}, err
	}
	return unmarshalEntity[Plan](stored)
}

// GetPlan fetches one cap, ErrNotFound when the category has none.
func (s *Service) GetPlan(ctx context.Context, userID, month, category string) (Plan, error) {
	key, err := planKey(userID, month, category)
	if err != nil {
		return Plan{}, err
	}
	return getEntity[Plan](ctx, s, key)
}

// ListPlans returns all caps for one month.
func (s *Service) ListPlans(ctx context.Context, userID, month string) ([]Plan, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}
	pk, err := userPK(userID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Query(ctx, ddbrepo.Query{
		PartitionValue: pk,
		SortPrefix:     TagBudget + keys.Separator + month,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalEntities[Plan](items)
}

// DeletePlan removes the cap for a month and category.
func (s *Service) DeletePlan(ctx context.Context, userID, month, category string) error {
	key, err := planKey(userID, month, category)
	if err != nil {
		return err
	}
	return notFoundOnCondition(s.repo.Delete(ctx, key))
}
