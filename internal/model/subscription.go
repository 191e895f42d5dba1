package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusPaused    SubscriptionStatus = "paused"
)

type UserSubscription struct {
	Base
	UserID uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	PlanID uuid.UUID         `json:"plan_id" gorm:"type:uuid;not null"`
	Plan   *SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`

	Status                SubscriptionStatus `json:"subscription_status" gorm:"column:subscription_status;type:varchar(20);not null;index"`
	Gateway               string             `json:"gateway" gorm:"type:varchar(20);not null"`
	GatewaySubscriptionID string             `json:"gateway_subscription_id" gorm:"index"`
	GatewayCustomerID     string             `json:"gateway_customer_id"`

	CurrentBillingCycleStart time.Time `json:"current_billing_cycle_start" gorm:"not null"`
	CurrentBillingCycleEnd   time.Time `json:"current_billing_cycle_end" gorm:"not null"`
	AnalysesUsedThisMonth    int       `json:"analyses_used_this_month" gorm:"not null"`

	SubscriptionStartDate time.Time  `json:"subscription_start_date" gorm:"not null"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date"`
	AutoRenewalEnabled    bool       `json:"auto_renewal_enabled" gorm:"not null"`
	CancelledAt           *time.Time `json:"cancelled_at"`
	PauseStartDate        *time.Time `json:"pause_start_date"`
	PauseEndDate          *time.Time `json:"pause_end_date"`

	// LastEventAt is the occurrence time of the newest gateway event applied to
	// the row. Older events are dropped.
	LastEventAt *time.Time        `json:"-"`
	Metadata    datatypes.JSONMap `json:"metadata"`
}

func (UserSubscription) TableName() string { return "user_subscriptions" }

// Lapsed reports whether an active row has run past its paid cycle. Rows that
// still auto-renew get renewalGrace for the renewal charge to land; cancelled
// rows lapse exactly at cycle end.
func (s *UserSubscription) Lapsed(now time.Time, renewalGrace time.Duration) bool {
	if s.Status != StatusActive {
		return false
	}
	end := s.CurrentBillingCycleEnd
	if s.AutoRenewalEnabled {
		end = end.Add(renewalGrace)
	}
	return now.After(end)
}

// HasAccess reports whether the row currently entitles the user to analyses.
func (s *UserSubscription) HasAccess(now time.Time, renewalGrace time.Duration) bool {
	return s.Status == StatusActive && !s.Lapsed(now, renewalGrace)
}

func (s *UserSubscription) RemainingAnalyses(limit int) int {
	remaining := limit - s.AnalysesUsedThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Transition names a reconciliation step. Each one has a fixed target status
// and a set of statuses it may start from.
type Transition string

const (
	TransitionActivate Transition = "activate"
	TransitionCharge   Transition = "charge"
	TransitionComplete Transition = "complete"
	TransitionCancel   Transition = "cancel"
	TransitionPause    Transition = "pause"
	TransitionResume   Transition = "resume"
	TransitionFail     Transition = "fail"
	TransitionExpire   Transition = "expire"
)

var transitionRules = map[Transition]struct {
	to   SubscriptionStatus
	from []SubscriptionStatus
}{
	TransitionActivate: {StatusActive, []SubscriptionStatus{StatusPending, StatusPastDue}},
	TransitionCharge:   {StatusActive, []SubscriptionStatus{StatusActive, StatusPastDue}},
	TransitionComplete: {StatusExpired, []SubscriptionStatus{StatusPending, StatusActive, StatusPastDue, StatusPaused, StatusCancelled}},
	TransitionCancel:   {StatusCancelled, []SubscriptionStatus{StatusPending, StatusActive, StatusPastDue, StatusPaused}},
	TransitionPause:    {StatusPaused, []SubscriptionStatus{StatusActive}},
	TransitionResume:   {StatusActive, []SubscriptionStatus{StatusPaused}},
	TransitionFail:     {StatusPastDue, []SubscriptionStatus{StatusPending, StatusActive, StatusPastDue}},
	TransitionExpire:   {StatusExpired, []SubscriptionStatus{StatusActive}},
}

// Next returns the status reached by applying t to s, and false when t is not
// allowed from s.
func (s SubscriptionStatus) Next(t Transition) (SubscriptionStatus, bool) {
	rule, ok := transitionRules[t]
	if !ok {
		return s, false
	}
	for _, from := range rule.from {
		if from == s {
			return rule.to, true
		}
	}
	return s, false
}
