package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/cache"
	"muscleai_backend/pkg/streak"
)

const (
	SourceServer  = "server"
	SourceCache   = "cache"
	SourceDefault = "default"
)

type StreakResponse struct {
	streak.View
	Motivation    string            `json:"motivation"`
	NextMilestone *streak.Milestone `json:"next_milestone"`
	Source        string            `json:"source"`
	Stale         bool              `json:"stale"`
	CachedAt      *time.Time        `json:"cached_at,omitempty"`
}

type StreakUpdate struct {
	streak.Result
	Streak StreakResponse `json:"streak"`
}

type MilestoneProgress struct {
	CurrentStreak int                `json:"current_streak"`
	Achieved      []streak.Milestone `json:"achieved"`
	Next          *streak.Milestone  `json:"next"`
	DaysToNext    int                `json:"days_to_next"`
	All           []streak.Milestone `json:"all"`
}

// StreakService reads streaks through a last-known-good cache. The database row
// is authoritative; the cache is only served when the database fails, and such
// responses are marked stale.
type StreakService struct {
	store  *repository.Store
	cache  cache.StreakCache
	notify *NotificationService
	log    *slog.Logger
	clock  Clock
}

func NewStreakService(store *repository.Store, c cache.StreakCache, notify *NotificationService, log *slog.Logger, clock Clock) *StreakService {
	return &StreakService{store: store, cache: c, notify: notify, log: log, clock: clock}
}

func toSnapshot(row *model.UserStreak) streak.Snapshot {
	return streak.Snapshot{
		CurrentStreak:     row.CurrentStreak,
		LongestStreak:     row.LongestStreak,
		LastAnalysisDate:  row.LastAnalysisDate,
		StreakFreezeCount: row.StreakFreezeCount,
	}
}

func fromSnapshot(userID uuid.UUID, s streak.Snapshot) *model.UserStreak {
	return &model.UserStreak{
		UserID:            userID,
		CurrentStreak:     s.CurrentStreak,
		LongestStreak:     s.LongestStreak,
		LastAnalysisDate:  s.LastAnalysisDate,
		StreakFreezeCount: s.StreakFreezeCount,
	}
}

// load reads the authoritative snapshot. A missing row is an empty streak.
func (s *StreakService) load(ctx context.Context, userID uuid.UUID) (streak.Snapshot, error) {
	row, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return streak.Snapshot{}, nil
		}
		return streak.Snapshot{}, err
	}
	return toSnapshot(row), nil
}

func (s *StreakService) remember(ctx context.Context, userID uuid.UUID, snap streak.Snapshot) {
	if err := s.cache.Set(ctx, userID.String(), cache.Entry{Snapshot: snap, CachedAt: s.clock.now()}); err != nil {
		s.log.Warn("could not cache streak", "user_id", userID, "error", err)
	}
}

// fallback returns the cached snapshot, or an empty one when none is cached.
func (s *StreakService) fallback(ctx context.Context, userID uuid.UUID) (streak.Snapshot, string, *time.Time) {
	entry, ok, err := s.cache.Get(ctx, userID.String())
	if err != nil {
		s.log.Warn("streak cache unavailable", "user_id", userID, "error", err)
	}
	if !ok || err != nil {
		return streak.Snapshot{}, SourceDefault, nil
	}
	at := entry.CachedAt
	return entry.Snapshot, SourceCache, &at
}

func (s *StreakService) respond(snap streak.Snapshot, source string, cachedAt *time.Time) StreakResponse {
	view := streak.Describe(snap, streak.Today(s.clock.now()))
	resp := StreakResponse{
		View:       view,
		Motivation: streak.Motivation(view),
		Source:     source,
		Stale:      source != SourceServer,
		CachedAt:   cachedAt,
	}
	if m, ok := streak.NextMilestone(snap.CurrentStreak); ok {
		resp.NextMilestone = &m
	}
	return resp
}

func (s *StreakService) Get(ctx context.Context, userID uuid.UUID) (*StreakResponse, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		s.log.Error("streak read failed, serving cache", "user_id", userID, "error", err)
		cached, source, at := s.fallback(ctx, userID)
		resp := s.respond(cached, source, at)
		return &resp, nil
	}
	s.remember(ctx, userID, snap)
	resp := s.respond(snap, SourceServer, nil)
	return &resp, nil
}

// Update records an analysis for today. When the database is unavailable the
// streak is advanced from the cached snapshot and written back to the cache.
func (s *StreakService) Update(ctx context.Context, userID uuid.UUID) (*StreakUpdate, error) {
	today := streak.Today(s.clock.now())

	source := SourceServer
	var cachedAt *time.Time
	prev, err := s.load(ctx, userID)
	if err != nil {
		s.log.Error("streak read failed, advancing cached snapshot", "user_id", userID, "error", err)
		prev, source, cachedAt = s.fallback(ctx, userID)
	}

	next, res, err := streak.Advance(prev, today)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("advance streak: %w", err))
	}

	if source == SourceServer {
		if err := s.store.SaveStreak(ctx, fromSnapshot(userID, next)); err != nil {
			s.log.Error("streak write failed, keeping cached copy", "user_id", userID, "error", err)
			source = SourceCache
		}
	}
	s.remember(ctx, userID, next)
	if source != SourceServer {
		now := s.clock.now()
		cachedAt = &now
	}

	s.notify.Achievement(ctx, userID, res, today)

	return &StreakUpdate{Result: res, Streak: s.respond(next, source, cachedAt)}, nil
}

// Reset clears the running streak. The longest record is kept.
func (s *StreakService) Reset(ctx context.Context, userID uuid.UUID) (*StreakResponse, error) {
	prev, err := s.load(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("load streak: %w", err))
	}
	next := streak.Reset(prev)
	if err := s.store.SaveStreak(ctx, fromSnapshot(userID, next)); err != nil {
		return nil, apperror.Internal("", fmt.Errorf("reset streak: %w", err))
	}
	s.remember(ctx, userID, next)
	s.log.Info("streak reset", "user_id", userID)

	resp := s.respond(next, SourceServer, nil)
	return &resp, nil
}

func (s *StreakService) Milestones(ctx context.Context, userID uuid.UUID) (*MilestoneProgress, error) {
	resp, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := resp.CurrentStreak
	p := &MilestoneProgress{
		CurrentStreak: current,
		Achieved:      streak.AchievedMilestones(current),
		All:           streak.Milestones,
	}
	if m, ok := streak.NextMilestone(current); ok {
		p.Next = &m
		p.DaysToNext = m.Days - current
	}
	return p, nil
}
