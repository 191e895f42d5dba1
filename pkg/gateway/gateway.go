// Package gateway adapts hosted-checkout payment providers to one interface and
// translates their webhooks into provider-neutral events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrCustomerNotFound = errors.New("customer exists but could not be fetched")
)

// Error is a provider failure. Description is the provider's own message.
type Error struct {
	Provider    string
	Op          string
	Description string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

type Customer struct {
	Name    string
	Email   string
	Contact string
}

type PaymentLinkRequest struct {
	AmountUSD   decimal.Decimal
	Description string
	CustomerID  string
	Customer    Customer
	// ReferenceID is the local subscription id the link pays for.
	ReferenceID string
	Notes       map[string]string
	CallbackURL string
}

type PaymentLink struct {
	ID       string
	ShortURL string
	Amount   int64
	Currency string
}

type LinkStatus struct {
	ID        string
	Status    string
	Paid      bool
	Amount    int64
	Currency  string
	PaymentID string
	Method    string
	Notes     map[string]string
}

// Callback is what the provider appends to the browser redirect after checkout.
type Callback struct {
	LinkID      string
	PaymentID   string
	ReferenceID string
	Status      string
}

type Gateway interface {
	Name() string
	Pricing() Pricing
	// EnsureCustomer creates the customer, or finds it by email when the
	// provider reports it already exists.
	EnsureCustomer(ctx context.Context, c Customer) (string, error)
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error)
	FetchPaymentLink(ctx context.Context, id string) (*LinkStatus, error)
	// IsRecurring reports whether id names a provider-side recurring subscription
	// rather than a one-off payment link.
	IsRecurring(id string) bool
	// CancelAtCycleEnd stops renewal of a recurring subscription.
	CancelAtCycleEnd(ctx context.Context, id string) error
	// ParseWebhook verifies and decodes a webhook delivery.
	ParseWebhook(body []byte, header func(string) string) (*Event, error)
	ParseCallback(query func(string) string) (*Callback, error)
	// VerifyPayment checks a client-supplied checkout signature.
	VerifyPayment(paymentID, subscriptionID, sig string) error
}

type EventKind string

const (
	EventPaymentLinkPaid       EventKind = "payment_link.paid"
	EventPaymentCaptured       EventKind = "payment.captured"
	EventPaymentFailed         EventKind = "payment.failed"
	EventSubscriptionActivated EventKind = "subscription.activated"
	EventSubscriptionCharged   EventKind = "subscription.charged"
	EventSubscriptionCompleted EventKind = "subscription.completed"
	EventSubscriptionCancelled EventKind = "subscription.cancelled"
	EventSubscriptionPaused    EventKind = "subscription.paused"
	EventSubscriptionResumed   EventKind = "subscription.resumed"
)

type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceCallback Source = "callback"
	SourceVerify   Source = "verify"
)

type Payment struct {
	ID               string
	OrderID          string
	Signature        string
	// Amount is in minor units of Currency. Zero means the producer did not report it.
	Amount           int64
	Currency         string
	Method           string
	ErrorCode        string
	ErrorDescription string
	CreatedAt        time.Time
}

// Event is a provider-neutral statement of gateway ground truth.
type Event struct {
	// DeliveryID identifies the webhook delivery, when the provider sends one.
	DeliveryID string
	Provider   string
	Kind       EventKind
	Source     Source
	// ExternalID is the payment link, checkout session or recurring subscription id.
	ExternalID      string
	SubscriptionRef string
	UserRef         string
	Payment         *Payment
	OccurredAt      time.Time
}

func (k EventKind) Known() bool {
	switch k {
	case EventPaymentLinkPaid, EventPaymentCaptured, EventPaymentFailed,
		EventSubscriptionActivated, EventSubscriptionCharged, EventSubscriptionCompleted,
		EventSubscriptionCancelled, EventSubscriptionPaused, EventSubscriptionResumed:
		return true
	}
	return false
}
