package cron

import (
	"context"
	"log/slog"

	"muscleai_backend/internal/service"
)

// SubscriptionExpiry expires lapsed rows and sends the 7 and 3 day warnings.
func SubscriptionExpiry(expiry *service.ExpiryService, log *slog.Logger) Job {
	return func(ctx context.Context) error {
		log.Info("checking for expiring subscriptions")
		report, err := expiry.Run(ctx)
		if report != nil {
			log.Info("subscription expiry run", "expired", report.Expired, "warned", report.Warned)
		}
		return err
	}
}
