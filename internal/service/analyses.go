package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/streak"
	"muscleai_backend/pkg/utils/cloudflare"
	imageutil "muscleai_backend/pkg/utils/image"
)

// PhotoStorage is implemented by *cloudflare.R2Storage.
type PhotoStorage interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type AnalysisService struct {
	store   *repository.Store
	quota   *QuotaService
	streaks *StreakService
	photos  PhotoStorage
	log     *slog.Logger
	clock   Clock
}

// NewAnalysisService accepts a nil photos store; analyses are then saved
// without a photo URL.
func NewAnalysisService(store *repository.Store, quota *QuotaService, streaks *StreakService, photos PhotoStorage, log *slog.Logger, clock Clock) *AnalysisService {
	return &AnalysisService{store: store, quota: quota, streaks: streaks, photos: photos, log: log, clock: clock}
}

type RecordAnalysisInput struct {
	Photo        io.Reader
	OverallScore *int
	Result       map[string]interface{}
}

type RecordAnalysisResult struct {
	Analysis *model.AnalysisRecord `json:"analysis"`
	Usage    *IncrementResult      `json:"usage,omitempty"`
	Streak   *StreakUpdate         `json:"streak,omitempty"`
}

// Record stores one finished analysis. The quota is checked first; usage and
// the streak are updated afterwards on a best-effort basis.
func (s *AnalysisService) Record(ctx context.Context, userID uuid.UUID, in RecordAnalysisInput) (*RecordAnalysisResult, error) {
	if in.OverallScore != nil && (*in.OverallScore < 0 || *in.OverallScore > 100) {
		return nil, apperror.Validation("overall_score must be between 0 and 100")
	}

	eligibility, err := s.quota.CanAnalyze(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := eligibility.Denied(); err != nil {
		return nil, err
	}

	rec := &model.AnalysisRecord{
		ID:           uuid.New(),
		UserID:       userID,
		OverallScore: in.OverallScore,
		Result:       datatypes.JSONMap(in.Result),
		CreatedAt:    s.clock.now(),
	}
	if eligibility.subscription != nil {
		id := eligibility.subscription.ID
		rec.SubscriptionID = &id
	}

	if in.Photo != nil && s.photos != nil {
		body, err := imageutil.EncodeWebP(in.Photo)
		if err != nil {
			return nil, apperror.Validation("Could not process photo. Allowed types: JPG, PNG, WEBP")
		}
		key := cloudflare.ObjectKey(userID.String(), rec.ID)
		url, err := s.photos.Upload(ctx, key, body, imageutil.ContentTypeWebP)
		if err != nil {
			return nil, apperror.Upstream("Could not store photo", err)
		}
		rec.PhotoKey = key
		rec.PhotoURL = url
	}

	if err := s.store.CreateAnalysis(ctx, rec); err != nil {
		if rec.PhotoKey != "" {
			if derr := s.photos.Delete(ctx, rec.PhotoKey); derr != nil {
				s.log.Error("could not remove orphaned photo", "key", rec.PhotoKey, "error", derr)
			}
		}
		return nil, apperror.Internal("", fmt.Errorf("save analysis: %w", err))
	}

	out := &RecordAnalysisResult{Analysis: rec}

	usage, err := s.quota.Increment(ctx, userID, IncrementInput{AnalysisResultID: &rec.ID})
	if err != nil {
		s.log.Error("usage increment failed after analysis", "user_id", userID, "analysis_id", rec.ID, "error", err)
	} else {
		out.Usage = usage
	}

	st, err := s.streaks.Update(ctx, userID)
	if err != nil {
		s.log.Error("streak update failed after analysis", "user_id", userID, "error", err)
	} else {
		out.Streak = st
	}

	return out, nil
}

type DailyStats struct {
	Date             string `json:"date"`
	AnalysesCount    int64  `json:"analyses_count"`
	AverageScore     *int   `json:"average_score"`
	BestScore        *int   `json:"best_score"`
	PreviousDayScore *int   `json:"previous_day_score"`
	// Improvement is the percentage change of the average score against the previous day.
	Improvement *int `json:"improvement"`
}

// Stats summarises the analyses of one UTC calendar day. An empty date means today.
func (s *AnalysisService) Stats(ctx context.Context, userID uuid.UUID, date string) (*DailyStats, error) {
	if date == "" {
		date = streak.Today(s.clock.now())
	}
	day, err := time.Parse(streak.DateLayout, date)
	if err != nil {
		return nil, apperror.Validation("date must be in YYYY-MM-DD format")
	}
	next := day.AddDate(0, 0, 1)
	prev := day.AddDate(0, 0, -1)

	count, err := s.store.CountAnalysesBetween(ctx, userID, day, next)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("count analyses: %w", err))
	}
	scores, err := s.store.ScoresBetween(ctx, userID, day, next)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("load scores: %w", err))
	}
	prevScores, err := s.store.ScoresBetween(ctx, userID, prev, day)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("load previous scores: %w", err))
	}

	stats := &DailyStats{Date: date, AnalysesCount: count}
	if avg, ok := mean(scores); ok {
		rounded := int(math.Round(avg))
		best := scores[0]
		for _, v := range scores[1:] {
			best = max(best, v)
		}
		stats.AverageScore = &rounded
		stats.BestScore = &best

		if prevAvg, ok := mean(prevScores); ok {
			p := int(math.Round(prevAvg))
			stats.PreviousDayScore = &p
			if prevAvg > 0 {
				imp := int(math.Round((avg - prevAvg) / prevAvg * 100))
				stats.Improvement = &imp
			}
		}
	} else if prevAvg, ok := mean(prevScores); ok {
		p := int(math.Round(prevAvg))
		stats.PreviousDayScore = &p
	}
	return stats, nil
}

func mean(v []int) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	sum := 0
	for _, x := range v {
		sum += x
	}
	return float64(sum) / float64(len(v)), true
}
