package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// Open connects to Postgres through the Supabase pooler.
func Open(opts Options) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN: opts.DSN,
		// The transaction pooler does not support prepared statements.
		PreferSimpleProtocol: true,
	}

	gormConfig := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Error),
		PrepareStmt: false,
	}

	db, err := gorm.Open(postgres.New(pgConfig), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)

	return db, nil
}

func Migrate(db *gorm.DB, log *slog.Logger, models ...interface{}) error {
	for _, model := range models {
		if !db.Migrator().HasTable(model) {
			if err := db.Migrator().CreateTable(model); err != nil {
				return fmt.Errorf("create table for %T: %w", model, err)
			}
			log.Info("created table", "model", fmt.Sprintf("%T", model))
		} else {
			if err := db.Migrator().AutoMigrate(model); err != nil {
				return fmt.Errorf("migrate table for %T: %w", model, err)
			}
			log.Debug("updated table", "model", fmt.Sprintf("%T", model))
		}
	}
	return EnsureIndexes(db)
}

// Partial indexes gorm tags cannot express. The statements are valid on both
// Postgres and SQLite.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_subscriptions_one_active
		ON user_subscriptions (user_id) WHERE subscription_status = 'active'`,
	`CREATE INDEX IF NOT EXISTS ix_notifications_unread
		ON notifications (user_id) WHERE read = false`,
}

func EnsureIndexes(db *gorm.DB) error {
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
