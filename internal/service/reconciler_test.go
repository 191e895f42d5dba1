package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/email"
	"muscleai_backend/pkg/gateway"
)

func headers(sig, eventID string) func(string) string {
	return query(map[string]string{"X-Signature": sig, "X-Event-Id": eventID})
}

func linkPaid(sub *model.UserSubscription, paymentID string, at time.Time) gateway.Event {
	return gateway.Event{
		Kind:            gateway.EventPaymentLinkPaid,
		ExternalID:      sub.GatewaySubscriptionID,
		SubscriptionRef: sub.ID.String(),
		UserRef:         sub.UserID.String(),
		Payment:         &gateway.Payment{ID: paymentID, Amount: 33200, Currency: "INR", Method: "upi"},
		OccurredAt:      at,
	}
}

func TestWebhookActivatesAndRecordsPayment(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanBasic, model.StatusPending)

	e.advance(time.Hour)
	body := webhookBody(t, linkPaid(sub, "pay_1", e.now))
	res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, body, headers("ok", "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "payment_link.paid", res.Event)

	stored := e.reload(sub.ID)
	assert.Equal(t, model.StatusActive, stored.Status)
	assert.Equal(t, 0, stored.AnalysesUsedThisMonth)
	assert.True(t, e.now.Equal(stored.CurrentBillingCycleStart))
	assert.True(t, e.now.AddDate(0, 0, 30).Equal(stored.CurrentBillingCycleEnd))

	txns := e.transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, "pay_1", txns[0].GatewayPaymentID)
	assert.Equal(t, model.PaymentCaptured, txns[0].PaymentStatus)
	assert.Equal(t, "332", txns[0].AmountPaid.String())
	assert.Equal(t, "INR", txns[0].Currency)
	assert.Equal(t, "4", txns[0].AmountPaidUSD.String())
	assert.Equal(t, []string{"subscription_started"}, e.mailer.Templates())

	t.Run("same delivery is dropped", func(t *testing.T) {
		res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, body, headers("ok", "evt_1"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, res.Outcome)
	})

	t.Run("same payment in a new delivery is dropped", func(t *testing.T) {
		captured := linkPaid(sub, "pay_1", e.now)
		captured.Kind = gateway.EventPaymentCaptured
		res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, webhookBody(t, captured), headers("ok", "evt_2"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, res.Outcome)
		assert.Len(t, e.transactions(), 1)
		assert.Len(t, e.mailer.Sent, 1)
	})
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	sub := e.seedSubscription(model.PlanBasic, model.StatusPending)

	_, err := e.reconciler.Webhook(context.Background(), gateway.ProviderRazorpay,
		webhookBody(t, linkPaid(sub, "pay_1", e.now)), headers("forged", "evt_1"))
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.Equal(t, model.StatusPending, e.reload(sub.ID).Status)
	assert.Empty(t, e.transactions())

	var deliveries int64
	require.NoError(t, e.db.Model(&model.WebhookEvent{}).Count(&deliveries).Error)
	assert.Zero(t, deliveries)
}

func TestWebhookUnknownEvent(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)

	res, err := e.reconciler.Webhook(context.Background(), gateway.ProviderRazorpay,
		webhookBody(t, gateway.Event{Kind: "order.paid"}), headers("ok", "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, "order.paid", res.Event)
}

func TestWebhookUnknownProvider(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	_, err := e.reconciler.Webhook(context.Background(), "paypal", nil, headers("ok", ""))
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCallbackAndWebhookRecordOneTransaction(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	created, err := e.subs.Create(ctx, e.user.ID, e.plans[model.PlanBasic].ID)
	require.NoError(t, err)
	e.gw.Pay(created.PaymentLinkID, "pay_42")

	page := e.reconciler.Callback(ctx, gateway.ProviderRazorpay, query(map[string]string{
		"link_id":      created.PaymentLinkID,
		"payment_id":   "pay_42",
		"reference_id": created.SubscriptionID.String(),
		"status":       "paid",
		"signature":    "ok",
	}))
	require.True(t, page.Success)

	sub := e.reload(created.SubscriptionID)
	res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay,
		webhookBody(t, linkPaid(sub, "pay_42", e.now)), headers("ok", "evt_9"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Len(t, e.transactions(), 1)
}

func TestCallbackPages(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid signature", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		created, err := e.subs.Create(ctx, e.user.ID, e.plans[model.PlanBasic].ID)
		require.NoError(t, err)
		e.gw.Pay(created.PaymentLinkID, "pay_1")

		page := e.reconciler.Callback(ctx, gateway.ProviderRazorpay, query(map[string]string{
			"link_id":      created.PaymentLinkID,
			"payment_id":   "pay_1",
			"reference_id": created.SubscriptionID.String(),
			"status":       "paid",
			"signature":    "forged",
		}))
		assert.Equal(t, http.StatusBadRequest, page.HTTPStatus)
		assert.False(t, page.Success)
		assert.Equal(t, model.StatusPending, e.reload(created.SubscriptionID).Status)
	})

	t.Run("claimed paid but link is not", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		created, err := e.subs.Create(ctx, e.user.ID, e.plans[model.PlanBasic].ID)
		require.NoError(t, err)

		page := e.reconciler.Callback(ctx, gateway.ProviderRazorpay, query(map[string]string{
			"link_id":      created.PaymentLinkID,
			"reference_id": created.SubscriptionID.String(),
			"status":       "paid",
			"signature":    "ok",
		}))
		assert.Equal(t, "Payment Pending", page.Title)
		assert.Equal(t, "Your payment is still being processed. Please wait.", page.Message)
		assert.Equal(t, model.StatusPending, e.reload(created.SubscriptionID).Status)
	})

	t.Run("failed", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		created, err := e.subs.Create(ctx, e.user.ID, e.plans[model.PlanBasic].ID)
		require.NoError(t, err)

		page := e.reconciler.Callback(ctx, gateway.ProviderRazorpay, query(map[string]string{
			"link_id":   created.PaymentLinkID,
			"status":    "failed",
			"signature": "ok",
		}))
		assert.Equal(t, "Payment Failed", page.Title)
		assert.Equal(t, "Your payment was not successful. Please try again.", page.Message)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		e.gw.Links["plink_orphan"] = &gateway.LinkStatus{ID: "plink_orphan", Status: "paid", Paid: true, PaymentID: "pay_x"}

		page := e.reconciler.Callback(ctx, gateway.ProviderRazorpay, query(map[string]string{
			"link_id":   "plink_orphan",
			"status":    "paid",
			"signature": "ok",
		}))
		assert.Equal(t, http.StatusNotFound, page.HTTPStatus)
		assert.Equal(t, "Subscription not found. Please contact support.", page.Message)
	})
}

func TestPaymentFailed(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanPro, model.StatusActive)

	res, err := e.reconciler.Apply(ctx, gateway.Event{
		Provider:   gateway.ProviderRazorpay,
		Kind:       gateway.EventPaymentFailed,
		Source:     gateway.SourceWebhook,
		ExternalID: sub.GatewaySubscriptionID,
		Payment: &gateway.Payment{
			ID: "pay_f1", Amount: 74700, Currency: "INR",
			ErrorCode: "BAD_REQUEST_ERROR", ErrorDescription: "Card declined by bank",
		},
		OccurredAt: e.now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.StatusPastDue, e.reload(sub.ID).Status)

	txns := e.transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, model.PaymentFailed, txns[0].PaymentStatus)
	require.NotNil(t, txns[0].ErrorCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", *txns[0].ErrorCode)
	assert.Equal(t, "Card declined by bank", *txns[0].ErrorDescription)

	notes := e.notifications(model.NotificationPaymentFailed)
	require.Len(t, notes, 1)
	assert.Equal(t, "pay_f1", notes[0].Metadata["payment_id"])
	assert.Equal(t, []string{"payment_failed"}, e.mailer.Templates())

	elig, err := e.quota.CanAnalyze(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSubscription, elig.Reason)
}

func TestOlderEventAfterNewerIsStale(t *testing.T) {
	ctx := context.Background()
	t1 := testStart.Add(time.Hour)
	t2 := testStart.Add(2 * time.Hour)

	event := func(sub *model.UserSubscription, kind gateway.EventKind, at time.Time) gateway.Event {
		return gateway.Event{
			Provider:   gateway.ProviderRazorpay,
			Kind:       kind,
			Source:     gateway.SourceWebhook,
			ExternalID: sub.GatewaySubscriptionID,
			OccurredAt: at,
		}
	}

	t.Run("in order then replayed", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusActive)

		res, err := e.reconciler.Apply(ctx, event(sub, gateway.EventSubscriptionPaused, t1))
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, res.Outcome)
		assert.NotNil(t, e.reload(sub.ID).PauseStartDate)

		res, err = e.reconciler.Apply(ctx, event(sub, gateway.EventSubscriptionResumed, t2))
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, res.Outcome)

		res, err = e.reconciler.Apply(ctx, event(sub, gateway.EventSubscriptionPaused, t1))
		require.NoError(t, err)
		assert.Equal(t, OutcomeStale, res.Outcome)
		assert.Equal(t, model.StatusActive, e.reload(sub.ID).Status)
	})

	t.Run("newer arrives first", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusActive)

		res, err := e.reconciler.Apply(ctx, event(sub, gateway.EventSubscriptionResumed, t2))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)

		res, err = e.reconciler.Apply(ctx, event(sub, gateway.EventSubscriptionPaused, t1))
		require.NoError(t, err)
		assert.Equal(t, OutcomeStale, res.Outcome)
		assert.Equal(t, model.StatusActive, e.reload(sub.ID).Status)
	})
}

func TestChargeStartsNewCycle(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanPro, model.StatusActive, func(s *model.UserSubscription) {
		s.GatewaySubscriptionID = "sub_rec_1"
		s.AnalysesUsedThisMonth = 17
	})

	renewal := testStart.AddDate(0, 0, 30)
	e.now = renewal.Add(time.Minute)
	res, err := e.reconciler.Apply(ctx, gateway.Event{
		Provider:   gateway.ProviderRazorpay,
		Kind:       gateway.EventSubscriptionCharged,
		Source:     gateway.SourceWebhook,
		ExternalID: "sub_rec_1",
		Payment:    &gateway.Payment{ID: "pay_r2", Amount: 74700, Currency: "INR"},
		OccurredAt: renewal,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	stored := e.reload(sub.ID)
	assert.Equal(t, model.StatusActive, stored.Status)
	assert.Equal(t, 0, stored.AnalysesUsedThisMonth)
	assert.True(t, renewal.AddDate(0, 0, 30).Equal(stored.CurrentBillingCycleEnd))
	assert.Equal(t, []string{"subscription_started"}, e.mailer.Templates())
	assert.True(t, e.mailer.Sent[0].Data.(email.SubscriptionStartedData).IsRenewal)

	t.Run("replayed charge keeps usage and window", func(t *testing.T) {
		_, err := e.quota.Increment(ctx, e.user.ID, IncrementInput{})
		require.NoError(t, err)
		before := e.reload(sub.ID)
		require.Equal(t, 1, before.AnalysesUsedThisMonth)

		e.advance(time.Hour)
		replay := gateway.Event{
			Kind:       gateway.EventSubscriptionCharged,
			ExternalID: "sub_rec_1",
			Payment:    &gateway.Payment{ID: "pay_r2", Amount: 74700, Currency: "INR"},
			OccurredAt: e.now,
		}
		res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, webhookBody(t, replay), headers("ok", "evt_charge_2"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, res.Outcome)

		after := e.reload(sub.ID)
		assert.Equal(t, 1, after.AnalysesUsedThisMonth)
		assert.True(t, before.CurrentBillingCycleStart.Equal(after.CurrentBillingCycleStart))
		assert.True(t, before.CurrentBillingCycleEnd.Equal(after.CurrentBillingCycleEnd))
		assert.Len(t, e.transactions(), 1)
		assert.Len(t, e.mailer.Sent, 1)
	})
}

func TestFailedTransitionRollsBackPayment(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanBasic, model.StatusPending)

	failNext := true
	require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register("test:fail_once", func(db *gorm.DB) {
		if failNext && db.Statement.Table == "user_subscriptions" {
			failNext = false
			_ = db.AddError(errors.New("transient db failure"))
		}
	}))

	e.advance(time.Hour)
	body := webhookBody(t, linkPaid(sub, "pay_1", e.now))

	_, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, body, headers("ok", "evt_1"))
	require.Error(t, err)
	assert.Equal(t, apperror.KindUnknown, apperror.KindOf(err))
	assert.Empty(t, e.transactions())
	assert.Equal(t, model.StatusPending, e.reload(sub.ID).Status)

	res, err := e.reconciler.Webhook(ctx, gateway.ProviderRazorpay, body, headers("ok", "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.StatusActive, e.reload(sub.ID).Status)
	require.Len(t, e.transactions(), 1)
	assert.Equal(t, "pay_1", e.transactions()[0].GatewayPaymentID)
}

func TestStaleEventKeepsPayment(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	sub := e.seedSubscription(model.PlanBasic, model.StatusPending)

	// A newer event already touched the row, so this capture loses the compare-and-swap.
	require.NoError(t, e.store.TouchEventTime(ctx, sub.ID, e.now.Add(2*time.Hour)))

	res, err := e.reconciler.Apply(ctx, linkPaid(sub, "pay_old", e.now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, model.StatusPending, e.reload(sub.ID).Status)
	require.Len(t, e.transactions(), 1)
	assert.Equal(t, "pay_old", e.transactions()[0].GatewayPaymentID)
}

func TestGatewayCancelAndComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelled", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusActive, func(s *model.UserSubscription) {
			s.GatewaySubscriptionID = "sub_rec_2"
		})
		_, err := e.reconciler.Apply(ctx, gateway.Event{
			Provider: gateway.ProviderRazorpay, Kind: gateway.EventSubscriptionCancelled,
			Source: gateway.SourceWebhook, ExternalID: "sub_rec_2", OccurredAt: e.now.Add(time.Hour),
		})
		require.NoError(t, err)

		stored := e.reload(sub.ID)
		assert.Equal(t, model.StatusCancelled, stored.Status)
		assert.NotNil(t, stored.CancelledAt)
		assert.False(t, stored.AutoRenewalEnabled)
		assert.Len(t, e.notifications(model.NotificationSubscriptionCancelled), 1)
	})

	t.Run("completed", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusActive, func(s *model.UserSubscription) {
			s.GatewaySubscriptionID = "sub_rec_3"
		})
		at := e.now.Add(time.Hour)
		_, err := e.reconciler.Apply(ctx, gateway.Event{
			Provider: gateway.ProviderRazorpay, Kind: gateway.EventSubscriptionCompleted,
			Source: gateway.SourceWebhook, ExternalID: "sub_rec_3", OccurredAt: at,
		})
		require.NoError(t, err)

		stored := e.reload(sub.ID)
		assert.Equal(t, model.StatusExpired, stored.Status)
		require.NotNil(t, stored.SubscriptionEndDate)
		assert.True(t, at.Equal(*stored.SubscriptionEndDate))
	})
}

func TestCapturedFallsBackToLatestPending(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	sub := e.seedSubscription(model.PlanVIP, model.StatusPending)

	res, err := e.reconciler.Apply(context.Background(), gateway.Event{
		Provider: gateway.ProviderRazorpay,
		Kind:     gateway.EventPaymentCaptured,
		Source:   gateway.SourceWebhook,
		UserRef:  e.user.ID.String(),
		Payment:  &gateway.Payment{ID: "pay_c1", Amount: 157700, Currency: "INR"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, sub.ID, res.Subscription.ID)
	assert.Equal(t, model.StatusActive, e.reload(sub.ID).Status)
}

func TestEventForUnknownSubscriptionIsIgnored(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)

	res, err := e.reconciler.Apply(context.Background(), gateway.Event{
		Provider:   gateway.ProviderRazorpay,
		Kind:       gateway.EventPaymentLinkPaid,
		Source:     gateway.SourceWebhook,
		ExternalID: "plink_missing",
		Payment:    &gateway.Payment{ID: "pay_m"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Empty(t, e.transactions())
}

func TestActivationSupersedesOtherActiveRow(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	current := e.seedSubscription(model.PlanBasic, model.StatusActive)
	pending := e.seedSubscription(model.PlanPro, model.StatusPending)

	res, err := e.reconciler.Apply(ctx, linkPaid(pending, "pay_s1", e.now.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	old := e.reload(current.ID)
	assert.Equal(t, model.StatusCancelled, old.Status)
	assert.Equal(t, pending.ID.String(), old.Metadata["superseded_by"])
	assert.Equal(t, model.StatusActive, e.reload(pending.ID).Status)
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("activates pending row at plan price", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		sub := e.seedSubscription(model.PlanPro, model.StatusPending)

		res, err := e.reconciler.VerifyPayment(ctx, e.user.ID, VerifyPaymentInput{
			PaymentID:      "pay_v1",
			SubscriptionID: "sub_client_ref",
			Signature:      "ok",
			UserID:         e.user.ID.String(),
		})
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Equal(t, sub.ID, res.Subscription.ID)
		assert.Equal(t, "Pro", res.Subscription.PlanName)
		assert.Equal(t, model.StatusActive, res.Subscription.Status)

		txns := e.transactions()
		require.Len(t, txns, 1)
		assert.Equal(t, "USD", txns[0].Currency)
		assert.Equal(t, "9", txns[0].AmountPaidUSD.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		e.seedSubscription(model.PlanPro, model.StatusPending)
		_, err := e.reconciler.VerifyPayment(ctx, e.user.ID, VerifyPaymentInput{
			PaymentID: "pay_v1", SubscriptionID: "sub_x", Signature: "forged",
		})
		assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
		assert.Empty(t, e.transactions())
	})

	t.Run("body user differs from caller", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		_, err := e.reconciler.VerifyPayment(ctx, e.user.ID, VerifyPaymentInput{
			PaymentID: "pay_v1", SubscriptionID: "sub_x", Signature: "ok", UserID: "someone-else",
		})
		assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	})

	t.Run("missing fields", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		_, err := e.reconciler.VerifyPayment(ctx, e.user.ID, VerifyPaymentInput{PaymentID: "pay_v1"})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("nothing pending", func(t *testing.T) {
		e := newTestEnv(t, config.CancelGrace)
		_, err := e.reconciler.VerifyPayment(ctx, e.user.ID, VerifyPaymentInput{
			PaymentID: "pay_v1", SubscriptionID: "sub_x", Signature: "ok",
		})
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})
}
