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
	"muscleai_backend/pkg/metrics"
)

var DefaultWarningDays = []int{7, 3}

// ExpiryService moves active rows past their paid cycle to expired and warns
// users whose cycle is about to end.
type ExpiryService struct {
	store        *repository.Store
	notify       *NotificationService
	renewalGrace time.Duration
	warningDays  []int
	log          *slog.Logger
	clock        Clock
}

func NewExpiryService(store *repository.Store, notify *NotificationService, renewalGrace time.Duration, log *slog.Logger, clock Clock) *ExpiryService {
	return &ExpiryService{
		store:        store,
		notify:       notify,
		renewalGrace: renewalGrace,
		warningDays:  DefaultWarningDays,
		log:          log,
		clock:        clock,
	}
}

type ExpiryReport struct {
	Expired int `json:"expired"`
	Warned  int `json:"warned"`
}

// Run checks every subscription. Called by the scheduler.
func (e *ExpiryService) Run(ctx context.Context) (*ExpiryReport, error) {
	now := e.clock.now()
	report := &ExpiryReport{}

	lapsed, err := e.store.ListLapsed(ctx, now, e.renewalGrace)
	if err != nil {
		return report, fmt.Errorf("list lapsed subscriptions: %w", err)
	}
	for i := range lapsed {
		ok, err := e.expire(ctx, &lapsed[i], now)
		if err != nil {
			e.log.Error("could not expire subscription", "subscription_id", lapsed[i].ID, "error", err)
			continue
		}
		if ok {
			report.Expired++
		}
	}

	for _, days := range e.warningDays {
		from, to := warningWindow(now, days)
		subs, err := e.store.ListEndingWithin(ctx, from, to)
		if err != nil {
			return report, fmt.Errorf("list subscriptions ending in %d days: %w", days, err)
		}
		e.log.Info("found expiring subscriptions", "days", days, "count", len(subs))
		for i := range subs {
			e.notify.ExpiryWarning(ctx, &subs[i], days)
			report.Warned++
		}
	}
	return report, nil
}

// RunForUser applies the same checks to one user. Called when the user fetches
// notifications so expiry does not wait for the next scheduled run.
func (e *ExpiryService) RunForUser(ctx context.Context, userID uuid.UUID) error {
	sub, err := e.store.FindActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find active subscription: %w", err)
	}

	now := e.clock.now()
	expired, err := e.ExpireIfLapsed(ctx, sub)
	if err != nil || expired {
		return err
	}
	for _, days := range e.warningDays {
		from, to := warningWindow(now, days)
		if sub.CurrentBillingCycleEnd.After(from) && !sub.CurrentBillingCycleEnd.After(to) {
			e.notify.ExpiryWarning(ctx, sub, days)
		}
	}
	return nil
}

// ExpireIfLapsed expires sub when it has run past its cycle and reports whether
// it did. sub is updated in place.
func (e *ExpiryService) ExpireIfLapsed(ctx context.Context, sub *model.UserSubscription) (bool, error) {
	now := e.clock.now()
	if !sub.Lapsed(now, e.renewalGrace) {
		return false, nil
	}
	return e.expire(ctx, sub, now)
}

func (e *ExpiryService) expire(ctx context.Context, sub *model.UserSubscription, now time.Time) (bool, error) {
	to, ok := sub.Status.Next(model.TransitionExpire)
	if !ok {
		return false, nil
	}
	end := sub.CurrentBillingCycleEnd
	changed, err := e.store.TransitionSubscription(ctx, sub.ID, sub.Status, now, map[string]interface{}{
		"subscription_status":   to,
		"subscription_end_date": end,
		"auto_renewal_enabled":  false,
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	metrics.SubscriptionTransitions.WithLabelValues(string(model.TransitionExpire), string(sub.Status), string(to)).Inc()
	e.log.Info("subscription expired", "subscription_id", sub.ID, "user_id", sub.UserID, "cycle_end", end)

	sub.Status = to
	sub.SubscriptionEndDate = &end
	sub.AutoRenewalEnabled = false
	e.notify.SubscriptionExpired(ctx, sub)
	return true, nil
}

// warningWindow is the (from, to] range of cycle ends that are days away.
func warningWindow(now time.Time, days int) (time.Time, time.Time) {
	return now.AddDate(0, 0, days-1), now.AddDate(0, 0, days)
}
