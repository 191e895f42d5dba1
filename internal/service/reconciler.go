package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/gateway"
	"muscleai_backend/pkg/metrics"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
)

// errStale rolls back a transition whose compare-and-swap lost.
var errStale = errors.New("subscription changed concurrently")

type Result struct {
	Outcome      Outcome                 `json:"outcome"`
	Transition   model.Transition        `json:"transition,omitempty"`
	Subscription *model.UserSubscription `json:"-"`
}

// Reconciler applies gateway ground truth to subscription rows. Every producer
// (webhooks, the checkout callback, client verification) goes through Apply, so
// re-delivered and re-ordered events converge on the same state.
type Reconciler struct {
	store    *repository.Store
	gateways *gateway.Registry
	notify   *NotificationService
	cycle    time.Duration
	log      *slog.Logger
	clock    Clock
}

func NewReconciler(store *repository.Store, gateways *gateway.Registry, notify *NotificationService, cycleDays int, log *slog.Logger, clock Clock) *Reconciler {
	if cycleDays <= 0 {
		cycleDays = 30
	}
	return &Reconciler{
		store:    store,
		gateways: gateways,
		notify:   notify,
		cycle:    time.Duration(cycleDays) * 24 * time.Hour,
		log:      log,
		clock:    clock,
	}
}

func transitionFor(kind gateway.EventKind) (model.Transition, bool) {
	switch kind {
	case gateway.EventPaymentLinkPaid, gateway.EventPaymentCaptured, gateway.EventSubscriptionActivated:
		return model.TransitionActivate, true
	case gateway.EventSubscriptionCharged:
		return model.TransitionCharge, true
	case gateway.EventSubscriptionCompleted:
		return model.TransitionComplete, true
	case gateway.EventSubscriptionCancelled:
		return model.TransitionCancel, true
	case gateway.EventSubscriptionPaused:
		return model.TransitionPause, true
	case gateway.EventSubscriptionResumed:
		return model.TransitionResume, true
	case gateway.EventPaymentFailed:
		return model.TransitionFail, true
	}
	return "", false
}

// Apply reconciles one event. It is safe to call any number of times with the
// same event.
func (r *Reconciler) Apply(ctx context.Context, evt gateway.Event) (*Result, error) {
	res, err := r.apply(ctx, evt)
	outcome := "error"
	if err == nil {
		outcome = string(res.Outcome)
	}
	metrics.ReconcileEvents.WithLabelValues(evt.Provider, string(evt.Source), string(evt.Kind), outcome).Inc()
	return res, err
}

func (r *Reconciler) apply(ctx context.Context, evt gateway.Event) (*Result, error) {
	tr, ok := transitionFor(evt.Kind)
	if !ok {
		r.log.Info("ignoring gateway event", "provider", evt.Provider, "event", evt.Kind)
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = r.clock.now()
	}
	// Timestamps are compared at whole-second precision on every backend.
	evt.OccurredAt = evt.OccurredAt.UTC().Truncate(time.Second)

	sub, err := r.locate(ctx, evt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("no subscription for gateway event", "provider", evt.Provider, "event", evt.Kind,
				"external_id", evt.ExternalID, "subscription_ref", evt.SubscriptionRef, "user_ref", evt.UserRef)
			return &Result{Outcome: OutcomeIgnored, Transition: tr}, nil
		}
		return nil, fmt.Errorf("locate subscription: %w", err)
	}

	// The payment row and the status change commit together, so a failed
	// transition leaves nothing behind and the provider's retry is applied
	// in full. Disallowed and stale events still keep the payment row.
	outcome := OutcomeApplied
	from := sub.Status
	to, allowed := from.Next(tr)
	err = r.store.Transaction(ctx, func(tx *repository.Store) error {
		if evt.Payment != nil && evt.Payment.ID != "" {
			created, err := r.recordPayment(ctx, tx, evt, tr, sub)
			if err != nil {
				return err
			}
			if !created {
				outcome = OutcomeDuplicate
				return nil
			}
		}

		if !allowed {
			if err := tx.TouchEventTime(ctx, sub.ID, evt.OccurredAt); err != nil {
				return fmt.Errorf("touch event time: %w", err)
			}
			outcome = OutcomeIgnored
			return nil
		}

		// Nested so a lost compare-and-swap undoes the supersede but not the payment.
		err := tx.Transaction(ctx, func(tx *repository.Store) error {
			if to == model.StatusActive && from != model.StatusActive {
				ids, err := tx.SupersedeActive(ctx, sub.UserID, sub.ID, evt.OccurredAt)
				if err != nil {
					return fmt.Errorf("supersede active subscription: %w", err)
				}
				for _, id := range ids {
					r.log.Info("subscription superseded", "subscription_id", id, "superseded_by", sub.ID)
				}
			}
			changed, err := tx.TransitionSubscription(ctx, sub.ID, from, evt.OccurredAt, r.updatesFor(tr, to, evt))
			if err != nil {
				return fmt.Errorf("transition subscription: %w", err)
			}
			if !changed {
				return errStale
			}
			return nil
		})
		if errors.Is(err, errStale) {
			outcome = OutcomeStale
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeDuplicate:
		return &Result{Outcome: OutcomeDuplicate, Transition: tr, Subscription: sub}, nil
	case OutcomeIgnored:
		r.log.Info("transition not allowed", "subscription_id", sub.ID, "transition", tr, "status", from)
		return &Result{Outcome: OutcomeIgnored, Transition: tr, Subscription: sub}, nil
	case OutcomeStale:
		r.log.Info("stale gateway event", "subscription_id", sub.ID, "event", evt.Kind, "occurred_at", evt.OccurredAt)
		return &Result{Outcome: OutcomeStale, Transition: tr, Subscription: sub}, nil
	}

	metrics.SubscriptionTransitions.WithLabelValues(string(tr), string(from), string(to)).Inc()
	r.log.Info("subscription transitioned", "subscription_id", sub.ID, "user_id", sub.UserID,
		"transition", tr, "from", from, "to", to, "provider", evt.Provider, "source", evt.Source)

	if fresh, err := r.store.GetSubscription(ctx, sub.ID); err == nil {
		sub = fresh
	} else {
		r.log.Error("could not reload subscription", "subscription_id", sub.ID, "error", err)
		sub.Status = to
	}
	r.sideEffects(ctx, tr, evt, sub)

	return &Result{Outcome: OutcomeApplied, Transition: tr, Subscription: sub}, nil
}

func (r *Reconciler) locate(ctx context.Context, evt gateway.Event) (*model.UserSubscription, error) {
	if id, err := uuid.Parse(evt.SubscriptionRef); err == nil {
		sub, err := r.store.GetSubscription(ctx, id)
		if err == nil || !errors.Is(err, repository.ErrNotFound) {
			return sub, err
		}
	}
	if evt.ExternalID != "" {
		sub, err := r.store.FindByGatewaySubscriptionID(ctx, evt.ExternalID)
		if err == nil || !errors.Is(err, repository.ErrNotFound) {
			return sub, err
		}
	}
	if evt.Kind == gateway.EventPaymentCaptured {
		if userID, err := uuid.Parse(evt.UserRef); err == nil {
			return r.store.FindLatestPending(ctx, userID)
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Reconciler) pricing(evt gateway.Event, sub *model.UserSubscription) gateway.Pricing {
	if gw, ok := r.gateways.Get(evt.Provider); ok {
		return gw.Pricing()
	}
	if gw, ok := r.gateways.Get(sub.Gateway); ok {
		return gw.Pricing()
	}
	return gateway.USDPricing()
}

// recordPayment appends the payment transaction and reports false when the
// same payment outcome was recorded before.
func (r *Reconciler) recordPayment(ctx context.Context, store *repository.Store, evt gateway.Event, tr model.Transition, sub *model.UserSubscription) (bool, error) {
	p := evt.Payment
	status := model.PaymentCaptured
	if tr == model.TransitionFail {
		status = model.PaymentFailed
	}

	var amount, usd decimal.Decimal
	currency := p.Currency
	if p.Amount > 0 {
		pricing := r.pricing(evt, sub)
		amount = pricing.Major(p.Amount)
		usd = pricing.ToUSD(amount, currency)
	} else if sub.Plan != nil {
		amount = sub.Plan.PlanPriceUSD
		usd = sub.Plan.PlanPriceUSD
		currency = "USD"
	}
	if currency == "" {
		currency = "USD"
	}

	date := p.CreatedAt
	if date.IsZero() {
		date = evt.OccurredAt
	}

	subID := sub.ID
	txn := &model.PaymentTransaction{
		UserID:           sub.UserID,
		SubscriptionID:   &subID,
		Gateway:          evt.Provider,
		GatewayPaymentID: p.ID,
		GatewayOrderID:   p.OrderID,
		AmountPaid:       amount,
		Currency:         currency,
		AmountPaidUSD:    usd,
		PaymentStatus:    status,
		PaymentMethod:    p.Method,
		TransactionDate:  date,
		Metadata: datatypes.JSONMap{
			"source": string(evt.Source),
			"event":  string(evt.Kind),
		},
	}
	if txn.Gateway == "" {
		txn.Gateway = sub.Gateway
	}
	if p.Signature != "" {
		txn.GatewaySignature = &p.Signature
	}
	if p.ErrorCode != "" {
		txn.ErrorCode = &p.ErrorCode
	}
	if p.ErrorDescription != "" {
		txn.ErrorDescription = &p.ErrorDescription
	}

	created, err := store.InsertTransactionOnce(ctx, txn)
	if err != nil {
		return false, fmt.Errorf("record payment: %w", err)
	}
	if !created {
		r.log.Info("payment already recorded", "payment_id", p.ID, "status", status, "source", evt.Source)
	}
	return created, nil
}

func (r *Reconciler) updatesFor(tr model.Transition, to model.SubscriptionStatus, evt gateway.Event) map[string]interface{} {
	at := evt.OccurredAt
	updates := map[string]interface{}{"subscription_status": to}

	switch tr {
	case model.TransitionActivate, model.TransitionCharge:
		updates["current_billing_cycle_start"] = at
		updates["current_billing_cycle_end"] = at.Add(r.cycle)
		updates["analyses_used_this_month"] = 0
		if tr == model.TransitionActivate {
			updates["subscription_start_date"] = at
		}
	case model.TransitionComplete:
		updates["subscription_end_date"] = at
		updates["auto_renewal_enabled"] = false
	case model.TransitionCancel:
		updates["cancelled_at"] = at
		updates["auto_renewal_enabled"] = false
	case model.TransitionPause:
		updates["pause_start_date"] = at
	case model.TransitionResume:
		updates["pause_end_date"] = at
	}
	return updates
}

func (r *Reconciler) sideEffects(ctx context.Context, tr model.Transition, evt gateway.Event, sub *model.UserSubscription) {
	switch tr {
	case model.TransitionActivate:
		r.notify.SubscriptionStarted(ctx, sub, false)
	case model.TransitionCharge:
		r.notify.SubscriptionStarted(ctx, sub, true)
	case model.TransitionCancel:
		r.notify.SubscriptionCancelled(ctx, sub, evt.OccurredAt)
	case model.TransitionComplete:
		r.notify.SubscriptionExpired(ctx, sub)
	case model.TransitionFail:
		paymentID, reason := evt.ExternalID+":"+evt.OccurredAt.Format(time.RFC3339), "Payment declined"
		if p := evt.Payment; p != nil {
			if p.ID != "" {
				paymentID = p.ID
			}
			if p.ErrorDescription != "" {
				reason = p.ErrorDescription
			}
		}
		r.notify.PaymentFailed(ctx, sub, paymentID, reason)
	}
}

type WebhookResult struct {
	Event   string  `json:"event"`
	Outcome Outcome `json:"outcome"`
}

// Webhook verifies, deduplicates and applies one provider delivery.
func (r *Reconciler) Webhook(ctx context.Context, provider string, body []byte, header func(string) string) (*WebhookResult, error) {
	gw, ok := r.gateways.Get(provider)
	if !ok {
		return nil, apperror.NotFound("Unknown payment provider")
	}

	evt, err := gw.ParseWebhook(body, header)
	if err != nil {
		metrics.ReconcileEvents.WithLabelValues(provider, string(gateway.SourceWebhook), "", "rejected").Inc()
		if errors.Is(err, gateway.ErrInvalidSignature) {
			r.log.Warn("webhook signature mismatch", "provider", provider)
			return nil, apperror.Unauthorized("Invalid signature")
		}
		return nil, apperror.Validation("Invalid webhook payload")
	}

	out := &WebhookResult{Event: string(evt.Kind)}
	if !evt.Kind.Known() {
		r.log.Info("unhandled webhook event", "provider", provider, "event", evt.Kind)
		out.Outcome = OutcomeIgnored
		metrics.ReconcileEvents.WithLabelValues(provider, string(evt.Source), string(evt.Kind), string(OutcomeIgnored)).Inc()
		return out, nil
	}

	if evt.DeliveryID != "" {
		fresh, err := r.store.RecordWebhookEvent(ctx, &model.WebhookEvent{
			Provider:   provider,
			EventID:    evt.DeliveryID,
			EventType:  string(evt.Kind),
			ReceivedAt: r.clock.now(),
		})
		if err != nil {
			return nil, apperror.Internal("", fmt.Errorf("record webhook delivery: %w", err))
		}
		if !fresh {
			out.Outcome = OutcomeDuplicate
			metrics.ReconcileEvents.WithLabelValues(provider, string(evt.Source), string(evt.Kind), string(OutcomeDuplicate)).Inc()
			return out, nil
		}
	}

	res, err := r.Apply(ctx, *evt)
	if err != nil {
		if evt.DeliveryID != "" {
			if ferr := r.store.ForgetWebhookEvent(ctx, provider, evt.DeliveryID); ferr != nil {
				r.log.Error("could not forget webhook delivery", "provider", provider, "event_id", evt.DeliveryID, "error", ferr)
			}
		}
		r.log.Error("webhook processing failed", "provider", provider, "event", evt.Kind, "error", err)
		return nil, apperror.Internal("", err)
	}
	out.Outcome = res.Outcome
	return out, nil
}

const (
	callbackSuccess  = "Payment successful! Please go back to the app."
	callbackFailed   = "Your payment was not successful. Please try again."
	callbackPending  = "Your payment is still being processed. Please wait."
	callbackNotFound = "Subscription not found. Please contact support."
	callbackError    = "An error occurred. Please contact support."
)

// CallbackResult is rendered as the page the browser lands on after checkout.
type CallbackResult struct {
	HTTPStatus int
	Success    bool
	Title      string
	Message    string
}

func callbackPage(status int, success bool, title, message string) *CallbackResult {
	return &CallbackResult{HTTPStatus: status, Success: success, Title: title, Message: message}
}

// Callback handles the checkout redirect. Query parameters are only trusted
// after the signature check, and the link is re-fetched so activation depends
// on the provider's own state.
func (r *Reconciler) Callback(ctx context.Context, provider string, query func(string) string) *CallbackResult {
	gw, ok := r.gateways.Get(provider)
	if !ok {
		return callbackPage(http.StatusBadRequest, false, "Error", callbackError)
	}

	cb, err := gw.ParseCallback(query)
	if err != nil {
		r.log.Warn("rejected payment callback", "provider", gw.Name(), "error", err)
		return callbackPage(http.StatusBadRequest, false, "Error", callbackError)
	}

	link, err := gw.FetchPaymentLink(ctx, cb.LinkID)
	if err != nil {
		r.log.Error("could not fetch payment link", "provider", gw.Name(), "link_id", cb.LinkID, "error", err)
		return callbackPage(http.StatusBadGateway, false, "Error", callbackError)
	}

	if !link.Paid {
		switch link.Status {
		case "cancelled", "expired", "failed":
			return callbackPage(http.StatusOK, false, "Payment Failed", callbackFailed)
		}
		if cb.Status == "failed" {
			return callbackPage(http.StatusOK, false, "Payment Failed", callbackFailed)
		}
		return callbackPage(http.StatusOK, false, "Payment Pending", callbackPending)
	}

	ref := cb.ReferenceID
	if ref == "" {
		ref = link.Notes["subscription_id"]
	}
	evt := gateway.Event{
		Provider:        gw.Name(),
		Kind:            gateway.EventPaymentLinkPaid,
		Source:          gateway.SourceCallback,
		ExternalID:      link.ID,
		SubscriptionRef: ref,
		UserRef:         link.Notes["user_id"],
	}
	paymentID := link.PaymentID
	if paymentID == "" {
		paymentID = cb.PaymentID
	}
	if paymentID != "" {
		evt.Payment = &gateway.Payment{
			ID:       paymentID,
			OrderID:  link.ID,
			Amount:   link.Amount,
			Currency: link.Currency,
			Method:   link.Method,
		}
	}

	res, err := r.Apply(ctx, evt)
	if err != nil {
		r.log.Error("payment callback failed", "link_id", link.ID, "error", err)
		return callbackPage(http.StatusInternalServerError, false, "Error", callbackError)
	}
	if res.Subscription == nil {
		r.log.Warn("payment callback for unknown subscription", "link_id", link.ID, "reference_id", ref)
		return callbackPage(http.StatusNotFound, false, "Error", callbackNotFound)
	}
	return callbackPage(http.StatusOK, true, "Payment Successful", callbackSuccess)
}

type VerifyPaymentInput struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
	UserID         string `json:"user_id"`
}

type VerifiedSubscription struct {
	ID       uuid.UUID                `json:"id"`
	PlanName string                   `json:"plan_name"`
	Status   model.SubscriptionStatus `json:"status"`
}

type VerifyPaymentResult struct {
	Success      bool                 `json:"success"`
	Verified     bool                 `json:"verified"`
	Subscription VerifiedSubscription `json:"subscription"`
}

// VerifyPayment checks a checkout signature reported by the client and
// activates the caller's subscription.
func (r *Reconciler) VerifyPayment(ctx context.Context, userID uuid.UUID, in VerifyPaymentInput) (*VerifyPaymentResult, error) {
	if in.PaymentID == "" || in.SubscriptionID == "" || in.Signature == "" {
		return nil, apperror.Validation("Missing required fields")
	}
	if in.UserID != "" && in.UserID != userID.String() {
		return nil, apperror.Unauthorized("User mismatch")
	}

	gw := r.gateways.Primary()
	if err := gw.VerifyPayment(in.PaymentID, in.SubscriptionID, in.Signature); err != nil {
		r.log.Warn("payment signature mismatch", "user_id", userID, "payment_id", in.PaymentID)
		return nil, apperror.Unauthorized("Invalid payment signature")
	}

	sub, err := r.store.FindByGatewaySubscriptionID(ctx, in.SubscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		sub, err = r.store.FindLatestPending(ctx, userID)
	}
	if err != nil {
		return nil, notFound(err, "Subscription not found")
	}
	if sub.UserID != userID {
		return nil, apperror.NotFound("Subscription not found")
	}

	res, err := r.Apply(ctx, gateway.Event{
		Provider:        gw.Name(),
		Kind:            gateway.EventPaymentCaptured,
		Source:          gateway.SourceVerify,
		ExternalID:      in.SubscriptionID,
		SubscriptionRef: sub.ID.String(),
		UserRef:         userID.String(),
		Payment: &gateway.Payment{
			ID:        in.PaymentID,
			OrderID:   in.SubscriptionID,
			Signature: in.Signature,
		},
	})
	if err != nil {
		return nil, apperror.Internal("", err)
	}
	if res.Subscription != nil {
		sub = res.Subscription
	}

	return &VerifyPaymentResult{
		Success:  true,
		Verified: true,
		Subscription: VerifiedSubscription{
			ID:       sub.ID,
			PlanName: planName(sub),
			Status:   sub.Status,
		},
	}, nil
}
