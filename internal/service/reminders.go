package service

import (
	"context"
	"fmt"
	"log/slog"

	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/streak"
)

// ReminderService nudges users whose streak is still alive but who have not
// analysed anything today.
type ReminderService struct {
	store  *repository.Store
	notify *NotificationService
	log    *slog.Logger
	clock  Clock
}

func NewReminderService(store *repository.Store, notify *NotificationService, log *slog.Logger, clock Clock) *ReminderService {
	return &ReminderService{store: store, notify: notify, log: log, clock: clock}
}

// Run returns the number of reminders created. Re-running on the same day
// creates none.
func (r *ReminderService) Run(ctx context.Context) (int, error) {
	now := r.clock.now()
	today := streak.Today(now)
	yesterday := streak.Today(now.AddDate(0, 0, -1))

	streaks, err := r.store.ListStreaksLastActiveOn(ctx, yesterday)
	if err != nil {
		return 0, fmt.Errorf("list streaks: %w", err)
	}

	sent := 0
	for _, row := range streaks {
		view := streak.Describe(toSnapshot(&row), today)
		if view.Status != streak.StatusReady {
			continue
		}
		if r.notify.StreakReminder(ctx, row.UserID, row.CurrentStreak, today) {
			sent++
		}
	}
	r.log.Info("streak reminders sent", "date", today, "candidates", len(streaks), "sent", sent)
	return sent, nil
}
