package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/streak"
)

func TestStreakUpdateConsecutiveDays(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	first, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, SourceServer, first.Streak.Source)
	assert.False(t, first.Streak.Stale)

	same, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, same.CurrentStreak)

	e.advance(24 * time.Hour)
	next, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.CurrentStreak)
	assert.True(t, next.IsNewRecord)
	assert.Len(t, e.notifications(model.NotificationAchievement), 1)

	e.advance(3 * 24 * time.Hour)
	got, err := e.streaks.Get(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, streak.StatusBroken, got.Status)
	assert.Equal(t, 3, got.DaysSinceLast)

	broken, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, broken.CurrentStreak)
	assert.Equal(t, 2, broken.LongestStreak)
}

func TestStreakMilestoneNotification(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	yesterday := streak.Today(e.now.AddDate(0, 0, -1))
	require.NoError(t, e.store.SaveStreak(ctx, &model.UserStreak{
		UserID: e.user.ID, CurrentStreak: 6, LongestStreak: 10, LastAnalysisDate: &yesterday,
	}))

	res, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, res.CurrentStreak)
	require.NotNil(t, res.MilestoneAchieved)
	assert.Equal(t, "Dedicated Analyzer", *res.MilestoneAchieved)

	notes := e.notifications(model.NotificationAchievement)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Title, "Dedicated Analyzer")
	require.NotNil(t, res.Streak.NextMilestone)
	assert.Equal(t, 14, res.Streak.NextMilestone.Days)
}

func TestStreakServesCacheWhenDatabaseFails(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	_, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	got, err := e.streaks.Get(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, got.Source)
	assert.True(t, got.Stale)
	require.NotNil(t, got.CachedAt)
	assert.Equal(t, 1, got.CurrentStreak)

	e.advance(24 * time.Hour)
	upd, err := e.streaks.Update(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, upd.CurrentStreak)
	assert.True(t, upd.Streak.Stale)

	entry, ok, err := e.cache.Get(ctx, e.user.ID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Snapshot.CurrentStreak)
}

func TestStreakResetKeepsLongest(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	yesterday := streak.Today(e.now.AddDate(0, 0, -1))
	require.NoError(t, e.store.SaveStreak(ctx, &model.UserStreak{
		UserID: e.user.ID, CurrentStreak: 12, LongestStreak: 12, LastAnalysisDate: &yesterday,
	}))

	res, err := e.streaks.Reset(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CurrentStreak)
	assert.Equal(t, 12, res.LongestStreak)
	assert.Equal(t, streak.StatusNew, res.Status)

	p, err := e.streaks.Milestones(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Achieved)
	assert.Equal(t, 7, p.DaysToNext)
	assert.Len(t, p.All, 5)
}
