package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/gateway"
)

const (
	msgAlreadyActive     = "User already has an active subscription"
	msgAlreadyCancelled  = "This subscription has already been cancelled."
	msgExpired           = "This subscription has expired and cannot be cancelled."
	msgNoActive          = "No active subscription found. Please create a new subscription instead."
	msgSamePlan          = "You are already subscribed to this plan"
	msgCancelledGrace    = "Subscription cancelled successfully. You will have access until the end of your billing cycle."
	msgCancelledNow      = "Subscription cancelled successfully."
	msgPlanChangePending = "Plan change initiated. Complete the payment to activate your new plan."
)

type SubscriptionOptions struct {
	Policy    config.CancellationPolicy
	CycleDays int
	AppName   string
	// CallbackURL is where the gateway redirects the browser after checkout.
	CallbackURL string
}

type SubscriptionService struct {
	store    *repository.Store
	gateways *gateway.Registry
	notify   *NotificationService
	expiry   *ExpiryService
	opts     SubscriptionOptions
	log      *slog.Logger
	clock    Clock
}

func NewSubscriptionService(store *repository.Store, gateways *gateway.Registry, notify *NotificationService, expiry *ExpiryService, opts SubscriptionOptions, log *slog.Logger, clock Clock) *SubscriptionService {
	if opts.CycleDays <= 0 {
		opts.CycleDays = 30
	}
	if opts.Policy == "" {
		opts.Policy = config.CancelGrace
	}
	return &SubscriptionService{
		store:    store,
		gateways: gateways,
		notify:   notify,
		expiry:   expiry,
		opts:     opts,
		log:      log,
		clock:    clock,
	}
}

type CreateResult struct {
	Success        bool      `json:"success"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PaymentLinkID  string    `json:"payment_link_id"`
	ShortURL       string    `json:"short_url"`
}

type CancelledSubscription struct {
	ID          uuid.UUID                `json:"id"`
	Status      model.SubscriptionStatus `json:"status"`
	AccessUntil time.Time                `json:"access_until"`
	Cancelled   bool                     `json:"cancelled"`
	AutoRenewal bool                     `json:"auto_renewal"`
}

type CancelResult struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	Subscription CancelledSubscription `json:"subscription"`
}

type ChangePlanResult struct {
	Success           bool      `json:"success"`
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	OldSubscriptionID uuid.UUID `json:"old_subscription_id"`
	PaymentLinkID     string    `json:"payment_link_id"`
	ShortURL          string    `json:"short_url"`
	Message           string    `json:"message"`
}

func (s *SubscriptionService) cycle() time.Duration {
	return time.Duration(s.opts.CycleDays) * 24 * time.Hour
}

func (s *SubscriptionService) Plans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	plans, err := s.store.ListActivePlans(ctx)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("list plans: %w", err))
	}
	return plans, nil
}

func (s *SubscriptionService) activePlan(ctx context.Context, id uuid.UUID) (*model.SubscriptionPlan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return nil, notFound(err, "Subscription plan not found")
	}
	if !plan.IsActive {
		return nil, apperror.NotFound("Subscription plan is not available")
	}
	return plan, nil
}

// currentActive returns the user's active row, expiring it first when its paid
// cycle is over. It returns repository.ErrNotFound when there is none.
func (s *SubscriptionService) currentActive(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	sub, err := s.store.FindActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	expired, err := s.expiry.ExpireIfLapsed(ctx, sub)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

// customer reuses the newest customer id on the user's rows or creates one.
func (s *SubscriptionService) customer(ctx context.Context, gw gateway.Gateway, profile *model.Profile) (string, error) {
	id, err := s.store.LatestCustomerID(ctx, profile.ID, gw.Name())
	if err != nil {
		return "", apperror.Internal("", fmt.Errorf("lookup customer: %w", err))
	}
	if id != "" {
		return id, nil
	}
	id, err = gw.EnsureCustomer(ctx, gateway.Customer{
		Name:    profile.DisplayName(),
		Email:   profile.Email,
		Contact: profile.Phone,
	})
	if err != nil {
		return "", upstream(gw.Name(), err)
	}
	return id, nil
}

func (s *SubscriptionService) paymentLink(ctx context.Context, gw gateway.Gateway, profile *model.Profile, customerID string, plan *model.SubscriptionPlan, rowID uuid.UUID, extra map[string]string) (*gateway.PaymentLink, error) {
	notes := map[string]string{
		"user_id":         profile.ID.String(),
		"plan_id":         plan.ID.String(),
		"plan_name":       string(plan.PlanName),
		"subscription_id": rowID.String(),
		"app":             s.opts.AppName,
	}
	for k, v := range extra {
		notes[k] = v
	}

	link, err := gw.CreatePaymentLink(ctx, gateway.PaymentLinkRequest{
		AmountUSD:   plan.PlanPriceUSD,
		Description: fmt.Sprintf("%s - %s Plan", s.opts.AppName, plan.PlanName),
		CustomerID:  customerID,
		Customer: gateway.Customer{
			Name:    profile.DisplayName(),
			Email:   profile.Email,
			Contact: profile.Phone,
		},
		ReferenceID: rowID.String(),
		Notes:       notes,
		CallbackURL: s.opts.CallbackURL,
	})
	if err != nil {
		return nil, upstream(gw.Name(), err)
	}
	return link, nil
}

func (s *SubscriptionService) pendingRow(id, userID uuid.UUID, plan *model.SubscriptionPlan, gw gateway.Gateway, customerID string, link *gateway.PaymentLink, meta datatypes.JSONMap) *model.UserSubscription {
	now := s.clock.now()
	if meta == nil {
		meta = datatypes.JSONMap{}
	}
	meta["payment_link_url"] = link.ShortURL
	meta["amount"] = link.Amount
	meta["currency"] = link.Currency

	return &model.UserSubscription{
		Base:                     model.Base{ID: id},
		UserID:                   userID,
		PlanID:                   plan.ID,
		Status:                   model.StatusPending,
		Gateway:                  gw.Name(),
		GatewaySubscriptionID:    link.ID,
		GatewayCustomerID:        customerID,
		CurrentBillingCycleStart: now,
		CurrentBillingCycleEnd:   now.Add(s.cycle()),
		AnalysesUsedThisMonth:    0,
		SubscriptionStartDate:    now,
		AutoRenewalEnabled:       true,
		Metadata:                 meta,
	}
}

// Create starts checkout for planID. The row is written only after the
// gateway has issued a payment link.
func (s *SubscriptionService) Create(ctx context.Context, userID, planID uuid.UUID) (*CreateResult, error) {
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User profile not found")
	}

	if _, err := s.currentActive(ctx, userID); err == nil {
		return nil, apperror.Conflict(msgAlreadyActive)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal("", fmt.Errorf("check active subscription: %w", err))
	}

	gw := s.gateways.Primary()
	customerID, err := s.customer(ctx, gw, profile)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	link, err := s.paymentLink(ctx, gw, profile, customerID, plan, id, nil)
	if err != nil {
		s.log.Error("payment link creation failed", "user_id", userID, "plan", plan.PlanName, "error", err)
		return nil, err
	}

	sub := s.pendingRow(id, userID, plan, gw, customerID, link, nil)
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, apperror.Internal("", fmt.Errorf("save subscription: %w", err))
	}

	s.log.Info("subscription created", "subscription_id", id, "user_id", userID, "plan", plan.PlanName, "payment_link_id", link.ID)

	return &CreateResult{
		Success:        true,
		SubscriptionID: id,
		PaymentLinkID:  link.ID,
		ShortURL:       link.ShortURL,
	}, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*CancelResult, error) {
	sub, err := s.store.GetUserSubscription(ctx, subscriptionID, userID)
	if err != nil {
		return nil, notFound(err, "Subscription not found")
	}

	switch {
	case sub.Status == model.StatusCancelled,
		sub.Status == model.StatusActive && sub.CancelledAt != nil:
		return nil, apperror.Conflict(msgAlreadyCancelled)
	case sub.Status == model.StatusExpired:
		return nil, apperror.InvalidState(msgExpired)
	case sub.Status != model.StatusActive && sub.Status != model.StatusPending:
		return nil, apperror.InvalidState(fmt.Sprintf("Cannot cancel subscription with status: %s", sub.Status))
	}

	gw, ok := s.gateways.Get(sub.Gateway)
	if !ok {
		return nil, apperror.Internal("", fmt.Errorf("no gateway configured for %q", sub.Gateway))
	}
	if gw.IsRecurring(sub.GatewaySubscriptionID) {
		if err := gw.CancelAtCycleEnd(ctx, sub.GatewaySubscriptionID); err != nil {
			s.log.Error("gateway cancellation failed", "subscription_id", sub.ID, "error", err)
			return nil, upstream(gw.Name(), err)
		}
	}

	now := s.clock.now()
	updates := map[string]interface{}{
		"cancelled_at":         now,
		"auto_renewal_enabled": false,
	}
	// Pending rows have no paid period to keep.
	grace := s.opts.Policy == config.CancelGrace && sub.Status == model.StatusActive
	accessUntil := now
	message := msgCancelledNow
	if grace {
		accessUntil = sub.CurrentBillingCycleEnd
		message = msgCancelledGrace
	} else {
		updates["subscription_status"] = model.StatusCancelled
	}

	if err := s.store.UpdateSubscription(ctx, sub.ID, updates); err != nil {
		return nil, apperror.Internal("", fmt.Errorf("cancel subscription: %w", err))
	}
	if !grace {
		sub.Status = model.StatusCancelled
	}
	sub.CancelledAt = &now
	sub.AutoRenewalEnabled = false

	s.log.Info("subscription cancelled", "subscription_id", sub.ID, "user_id", userID, "policy", s.opts.Policy, "access_until", accessUntil)
	s.notify.SubscriptionCancelled(ctx, sub, accessUntil)

	return &CancelResult{
		Success: true,
		Message: message,
		Subscription: CancelledSubscription{
			ID:          sub.ID,
			Status:      sub.Status,
			AccessUntil: accessUntil,
			Cancelled:   true,
			AutoRenewal: false,
		},
	}, nil
}

// ChangePlan cancels the active row and opens checkout for newPlanID. The
// old row is cancelled before the new payment clears.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID, newPlanID uuid.UUID) (*ChangePlanResult, error) {
	current, err := s.currentActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.InvalidState(msgNoActive)
		}
		return nil, apperror.Internal("", fmt.Errorf("find active subscription: %w", err))
	}

	plan, err := s.activePlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if current.PlanID == plan.ID {
		return nil, apperror.NoOp(msgSamePlan)
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User profile not found")
	}

	gw := s.gateways.Primary()
	customerID, err := s.customer(ctx, gw, profile)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	link, err := s.paymentLink(ctx, gw, profile, customerID, plan, id, map[string]string{
		"is_plan_change":      "true",
		"old_subscription_id": current.ID.String(),
	})
	if err != nil {
		s.log.Error("payment link creation failed", "user_id", userID, "plan", plan.PlanName, "error", err)
		return nil, err
	}

	now := s.clock.now()
	oldMeta := datatypes.JSONMap{}
	for k, v := range current.Metadata {
		oldMeta[k] = v
	}
	oldMeta["replaced_by"] = id.String()

	next := s.pendingRow(id, userID, plan, gw, customerID, link, datatypes.JSONMap{
		"is_plan_change":      true,
		"old_subscription_id": current.ID.String(),
		"old_plan_id":         current.PlanID.String(),
	})

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.UpdateSubscription(ctx, current.ID, map[string]interface{}{
			"subscription_status":  model.StatusCancelled,
			"cancelled_at":         now,
			"auto_renewal_enabled": false,
			"metadata":             oldMeta,
		}); err != nil {
			return fmt.Errorf("cancel current subscription: %w", err)
		}
		if err := tx.CreateSubscription(ctx, next); err != nil {
			return fmt.Errorf("save new subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Internal("", err)
	}

	s.log.Info("plan change started", "user_id", userID, "old_subscription_id", current.ID, "subscription_id", id, "plan", plan.PlanName)

	return &ChangePlanResult{
		Success:           true,
		SubscriptionID:    id,
		OldSubscriptionID: current.ID,
		PaymentLinkID:     link.ID,
		ShortURL:          link.ShortURL,
		Message:           msgPlanChangePending,
	}, nil
}

// Current returns the user's newest subscription row with its plan.
func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	sub, err := s.store.FindLatestSubscription(ctx, userID)
	if err != nil {
		return nil, notFound(err, "No subscription found")
	}
	if _, err := s.expiry.ExpireIfLapsed(ctx, sub); err != nil {
		s.log.Error("could not expire lapsed subscription", "subscription_id", sub.ID, "error", err)
	}
	return sub, nil
}

func (s *SubscriptionService) PaymentHistory(ctx context.Context, userID uuid.UUID, limit int) ([]model.PaymentTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txns, err := s.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}
