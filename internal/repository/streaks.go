package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"muscleai_backend/internal/model"
)

func (s *Store) GetStreak(ctx context.Context, userID uuid.UUID) (*model.UserStreak, error) {
	var streak model.UserStreak
	if err := s.conn(ctx).First(&streak, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &streak, nil
}

func (s *Store) SaveStreak(ctx context.Context, streak *model.UserStreak) error {
	return s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_streak", "longest_streak", "last_analysis_date", "streak_freeze_count", "updated_at"}),
		}).
		Create(streak).Error
}

// ListStreaksLastActiveOn returns running streaks whose last analysis was on date.
func (s *Store) ListStreaksLastActiveOn(ctx context.Context, date string) ([]model.UserStreak, error) {
	var streaks []model.UserStreak
	err := s.conn(ctx).
		Where("last_analysis_date = ? AND current_streak > 0", date).
		Find(&streaks).Error
	return streaks, err
}
