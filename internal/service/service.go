// Package service holds the business operations behind the HTTP handlers:
// subscription lifecycle, gateway reconciliation, quota, streaks, notifications
// and the scheduled expiry and reminder runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/email"
	"muscleai_backend/pkg/gateway"
)

// Mailer sends the transactional emails. Implemented by *email.EmailService.
type Mailer interface {
	SendSubscriptionStartedEmail(ctx context.Context, to string, data email.SubscriptionStartedData) error
	SendSubscriptionCancelledEmail(ctx context.Context, to string, data email.SubscriptionCancelledData) error
	SendSubscriptionExpiryWarning(ctx context.Context, to string, data email.SubscriptionExpiryWarningData) error
	SendPaymentFailedEmail(ctx context.Context, to string, data email.PaymentFailedData) error
}

// Clock returns the current time. Services always work in UTC.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

func (c Clock) now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c().UTC()
}

// notFound maps repository.ErrNotFound to a NOT_FOUND error with msg and wraps
// anything else as internal.
func notFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal("", fmt.Errorf("%s: %w", msg, err))
}

// upstream surfaces the provider's own description.
func upstream(provider string, err error) error {
	desc := err.Error()
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		desc = gwErr.Description
	}
	return apperror.Upstream(fmt.Sprintf("%s error: %s", gateway.Title(provider), desc), err)
}
