package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/testutil"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/streak"
)

func TestStreakReminders(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	yesterday := streak.Today(e.now.AddDate(0, 0, -1))
	today := streak.Today(e.now)
	other := testutil.SeedProfile(t, e.db, "ravi@example.com")

	require.NoError(t, e.store.SaveStreak(ctx, &model.UserStreak{UserID: e.user.ID, CurrentStreak: 4, LongestStreak: 4, LastAnalysisDate: &yesterday}))
	require.NoError(t, e.store.SaveStreak(ctx, &model.UserStreak{UserID: other.ID, CurrentStreak: 2, LongestStreak: 2, LastAnalysisDate: &today}))

	sent, err := e.reminders.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	notes := e.notifications(model.NotificationReminder)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "4-day streak")

	sent, err = e.reminders.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
