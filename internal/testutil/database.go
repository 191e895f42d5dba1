// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/database"
	"muscleai_backend/pkg/subscription"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db, Logger(), model.All()...))
	return db
}

// Logger discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SeedPlans inserts the plan catalog and returns the rows by name.
func SeedPlans(t *testing.T, db *gorm.DB) map[model.PlanName]*model.SubscriptionPlan {
	t.Helper()

	plans := subscription.DefaultPlans()
	out := make(map[model.PlanName]*model.SubscriptionPlan, len(plans))
	for _, p := range plans {
		require.NoError(t, db.Create(p).Error)
		out[p.PlanName] = p
	}
	return out
}

// SeedProfile inserts a profile with a fresh id.
func SeedProfile(t *testing.T, db *gorm.DB, email string) *model.Profile {
	t.Helper()

	p := &model.Profile{ID: uuid.New(), Email: email, FullName: "Test User", Phone: "9999999999"}
	require.NoError(t, db.Create(p).Error)
	return p
}
