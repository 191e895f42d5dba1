package seed

import (
	"context"
	"fmt"
	"log/slog"

	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/subscription"
)

// SeedSubscriptionPlans upserts the plan catalog by name. Safe to run on every boot.
func SeedSubscriptionPlans(ctx context.Context, store *repository.Store, log *slog.Logger) error {
	plans := subscription.DefaultPlans()
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		for _, plan := range plans {
			if err := tx.UpsertPlan(ctx, plan); err != nil {
				return fmt.Errorf("upsert plan %s: %w", plan.PlanName, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("subscription plans seeded", "count", len(plans))
	return nil
}
