package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
)

const (
	ReasonNoSubscription = "no_subscription"
	ReasonQuotaExhausted = "quota_exhausted"

	msgNeedSubscription = "You need an active subscription to analyze images. Please purchase a plan."
)

type Eligibility struct {
	CanAnalyze         bool                     `json:"can_analyze"`
	AnalysesRemaining  int                      `json:"analyses_remaining"`
	MonthlyLimit       int                      `json:"monthly_limit"`
	SubscriptionStatus model.SubscriptionStatus `json:"subscription_status,omitempty"`
	PlanName           string                   `json:"plan_name,omitempty"`
	Reason             string                   `json:"reason,omitempty"`
	Message            string                   `json:"message,omitempty"`

	subscription *model.UserSubscription
}

// QuotaService gates analyses on the caller's active plan.
type QuotaService struct {
	store  *repository.Store
	expiry *ExpiryService
	log    *slog.Logger
	clock  Clock
}

func NewQuotaService(store *repository.Store, expiry *ExpiryService, log *slog.Logger, clock Clock) *QuotaService {
	return &QuotaService{store: store, expiry: expiry, log: log, clock: clock}
}

func (q *QuotaService) CanAnalyze(ctx context.Context, userID uuid.UUID) (*Eligibility, error) {
	sub, err := q.store.FindActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return noSubscription(), nil
		}
		return nil, apperror.Internal("", fmt.Errorf("find active subscription: %w", err))
	}

	expired, err := q.expiry.ExpireIfLapsed(ctx, sub)
	if err != nil {
		q.log.Error("could not expire lapsed subscription", "subscription_id", sub.ID, "error", err)
	}
	if expired || sub.Lapsed(q.clock.now(), q.expiry.renewalGrace) {
		return noSubscription(), nil
	}

	limit := 0
	if sub.Plan != nil {
		limit = sub.Plan.MonthlyAnalysesLimit
	}
	remaining := sub.RemainingAnalyses(limit)
	e := &Eligibility{
		CanAnalyze:         remaining > 0,
		AnalysesRemaining:  remaining,
		MonthlyLimit:       limit,
		SubscriptionStatus: sub.Status,
		PlanName:           planName(sub),
		subscription:       sub,
	}
	if !e.CanAnalyze {
		e.Reason = ReasonQuotaExhausted
		e.Message = fmt.Sprintf("You have reached your analysis limit. Remaining: %d", remaining)
	}
	return e, nil
}

func noSubscription() *Eligibility {
	return &Eligibility{
		Reason:  ReasonNoSubscription,
		Message: msgNeedSubscription,
	}
}

// Denied converts a negative eligibility into the error returned to callers.
func (e *Eligibility) Denied() error {
	if e.CanAnalyze {
		return nil
	}
	if e.Reason == ReasonNoSubscription {
		return apperror.InvalidState(e.Message)
	}
	return apperror.Conflict(e.Message)
}

type IncrementInput struct {
	AnalysisType     string                 `json:"analysis_type"`
	AnalysisResultID *uuid.UUID             `json:"analysis_result_id"`
	Metadata         map[string]interface{} `json:"metadata"`
}

type IncrementResult struct {
	Success           bool `json:"success"`
	AnalysesUsed      int  `json:"analyses_used"`
	AnalysesRemaining int  `json:"analyses_remaining"`
}

// Increment consumes one analysis from the active plan and records the usage.
func (q *QuotaService) Increment(ctx context.Context, userID uuid.UUID, in IncrementInput) (*IncrementResult, error) {
	e, err := q.CanAnalyze(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := e.Denied(); err != nil {
		return nil, err
	}
	sub := e.subscription

	ok, err := q.store.IncrementUsage(ctx, sub.ID, e.MonthlyLimit)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("increment usage: %w", err))
	}
	if !ok {
		// Another request consumed the last analysis first.
		return nil, apperror.Conflict("You have reached your analysis limit. Remaining: 0")
	}

	if in.AnalysisType == "" {
		in.AnalysisType = "muscle_analysis"
	}
	rec := &model.UsageRecord{
		UserID:           userID,
		SubscriptionID:   sub.ID,
		AnalysisDate:     q.clock.now(),
		AnalysisType:     in.AnalysisType,
		AnalysisResultID: in.AnalysisResultID,
		Metadata:         datatypes.JSONMap(in.Metadata),
	}
	if err := q.store.CreateUsage(ctx, rec); err != nil {
		q.log.Error("could not record usage", "user_id", userID, "subscription_id", sub.ID, "error", err)
	}

	used := sub.AnalysesUsedThisMonth + 1
	return &IncrementResult{
		Success:           true,
		AnalysesUsed:      used,
		AnalysesRemaining: max(e.MonthlyLimit-used, 0),
	}, nil
}

func (q *QuotaService) UsageHistory(ctx context.Context, userID uuid.UUID, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	recs, err := q.store.ListUsage(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("list usage: %w", err))
	}
	return recs, nil
}
