package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"muscleai_backend/internal/service"
)

// StreakReminder nudges users whose streak ends today. A run within 23 hours
// of the previous one is skipped, so a restart near the scheduled hour does
// not remind twice.
func StreakReminder(reminders *service.ReminderService, log *slog.Logger, now func() time.Time) Job {
	var (
		mu      sync.Mutex
		lastRun time.Time
	)

	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		if !lastRun.IsZero() && now().Sub(lastRun) < 23*time.Hour {
			log.Info("streak reminders already sent today, skipping")
			return nil
		}

		sent, err := reminders.Run(ctx)
		if err != nil {
			return err
		}
		lastRun = now()
		log.Info("streak reminders sent", "count", sent)
		return nil
	}
}
