package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"muscleai_backend/internal/model"
)

func (s *Store) CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	return s.conn(ctx).Create(rec).Error
}

func (s *Store) CreateUsage(ctx context.Context, rec *model.UsageRecord) error {
	return s.conn(ctx).Create(rec).Error
}

func (s *Store) ListUsage(ctx context.Context, userID uuid.UUID, limit int) ([]model.UsageRecord, error) {
	var recs []model.UsageRecord
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("analysis_date DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ScoresBetween returns the non-null overall scores recorded in [from, to).
func (s *Store) ScoresBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]int, error) {
	var scores []int
	err := s.conn(ctx).Model(&model.AnalysisRecord{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ? AND overall_score IS NOT NULL", userID, from, to).
		Order("created_at ASC").
		Pluck("overall_score", &scores).Error
	return scores, err
}

func (s *Store) CountAnalysesBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.AnalysisRecord{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Count(&count).Error
	return count, err
}
