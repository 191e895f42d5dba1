package repository

import (
	"context"

	"github.com/google/uuid"

	"muscleai_backend/internal/model"
)

func (s *Store) ListActivePlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	err := s.conn(ctx).
		Where("is_active = ?", true).
		Order("plan_price_usd ASC").
		Find(&plans).Error
	return plans, err
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	if err := s.conn(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

// UpsertPlan inserts the plan by name, or refreshes price, limit and copy of an existing one.
func (s *Store) UpsertPlan(ctx context.Context, plan *model.SubscriptionPlan) error {
	var existing model.SubscriptionPlan
	err := s.conn(ctx).Where("plan_name = ?", plan.PlanName).First(&existing).Error
	if err != nil {
		if translate(err) != ErrNotFound {
			return err
		}
		return s.conn(ctx).Create(plan).Error
	}

	plan.ID = existing.ID
	return s.conn(ctx).Model(&existing).Updates(map[string]interface{}{
		"plan_price_usd":         plan.PlanPriceUSD,
		"monthly_analyses_limit": plan.MonthlyAnalysesLimit,
		"description":            plan.Description,
		"features":               plan.Features,
		"is_active":              plan.IsActive,
	}).Error
}
