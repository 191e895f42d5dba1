package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	// SuccessURL receives ?session_id={CHECKOUT_SESSION_ID}.
	SuccessURL string
	CancelURL  string
}

// Stripe sells each billing cycle as a one-off Checkout Session, mirroring the
// Razorpay payment-link flow. Recurring ids (sub_) come from Stripe Billing.
type Stripe struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripe(opts StripeOptions) *Stripe {
	return &Stripe{
		api:           client.New(opts.SecretKey, nil),
		webhookSecret: opts.WebhookSecret,
		successURL:    opts.SuccessURL,
		cancelURL:     opts.CancelURL,
	}
}

func (s *Stripe) Name() string     { return ProviderStripe }
func (s *Stripe) Pricing() Pricing { return USDPricing() }

func stripeError(op string, err error) *Error {
	desc := err.Error()
	if se, ok := err.(*stripe.Error); ok && se.Msg != "" {
		desc = se.Msg
	}
	return &Error{Provider: ProviderStripe, Op: op, Description: desc, Err: err}
}

func (s *Stripe) EnsureCustomer(ctx context.Context, c Customer) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(c.Email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	it := s.api.Customers.List(listParams)
	for it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", stripeError("list customers", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(c.Email),
		Name:  stripe.String(c.Name),
	}
	if c.Contact != "" {
		params.Phone = stripe.String(c.Contact)
	}
	params.Context = ctx

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", stripeError("create customer", err)
	}
	return cust.ID, nil
}

func (s *Stripe) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	pricing := s.Pricing()
	amount := pricing.MinorUnits(req.AmountUSD)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(pricing.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Notes,
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, stripeError("create checkout session", err)
	}

	return &PaymentLink{
		ID:       sess.ID,
		ShortURL: sess.URL,
		Amount:   amount,
		Currency: pricing.Currency,
	}, nil
}

func (s *Stripe) FetchPaymentLink(ctx context.Context, id string) (*LinkStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, stripeError("fetch checkout session", err)
	}

	st := &LinkStatus{
		ID:       sess.ID,
		Status:   string(sess.PaymentStatus),
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Amount:   sess.AmountTotal,
		Currency: strings.ToUpper(string(sess.Currency)),
		Notes:    sess.Metadata,
	}
	if st.Paid {
		st.Status = "paid"
	}
	if sess.PaymentIntent != nil {
		st.PaymentID = sess.PaymentIntent.ID
		st.Method = "card"
	}
	return st, nil
}

func (s *Stripe) IsRecurring(id string) bool {
	return strings.HasPrefix(id, "sub_")
}

func (s *Stripe) CancelAtCycleEnd(ctx context.Context, id string) error {
	if !s.IsRecurring(id) {
		return nil
	}
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Update(id, params); err != nil {
		return stripeError("cancel subscription", err)
	}
	return nil
}

// ParseCallback reads the success redirect. Stripe does not sign it, so the
// caller must confirm the session with FetchPaymentLink.
func (s *Stripe) ParseCallback(query func(string) string) (*Callback, error) {
	id := query("session_id")
	if id == "" {
		return nil, ErrMalformedPayload
	}
	return &Callback{LinkID: id, Status: "paid"}, nil
}

// VerifyPayment has no Stripe equivalent; clients confirm through the callback.
func (s *Stripe) VerifyPayment(paymentID, subscriptionID, sig string) error {
	return fmt.Errorf("%w: stripe payments are confirmed by webhook", ErrInvalidSignature)
}

func (s *Stripe) ParseWebhook(body []byte, header func(string) string) (*Event, error) {
	event, err := webhook.ConstructEvent(body, header(StripeSignatureHeader), s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeStripeEvent(event)
}

func decodeStripeEvent(event stripe.Event) (*Event, error) {
	evt := &Event{
		DeliveryID: event.ID,
		Provider:   ProviderStripe,
		Kind:       EventKind(event.Type),
		Source:     SourceWebhook,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// Delayed payment methods settle later via async_payment_succeeded.
			return evt, nil
		}
		evt.Kind = EventPaymentLinkPaid
		evt.ExternalID = sess.ID
		evt.SubscriptionRef = sess.ClientReferenceID
		evt.UserRef = sess.Metadata["user_id"]
		evt.Payment = &Payment{
			Amount:    sess.AmountTotal,
			Currency:  strings.ToUpper(string(sess.Currency)),
			Method:    "card",
			OrderID:   sess.ID,
			CreatedAt: evt.OccurredAt,
		}
		if sess.PaymentIntent != nil {
			evt.Payment.ID = sess.PaymentIntent.ID
		}
		if evt.Payment.ID == "" {
			evt.Payment.ID = sess.ID
		}

	case "invoice.paid", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		evt.Kind = EventSubscriptionCharged
		if event.Type == "invoice.payment_failed" {
			evt.Kind = EventPaymentFailed
		}
		if inv.Subscription != nil {
			evt.ExternalID = inv.Subscription.ID
		}
		evt.Payment = &Payment{
			ID:        inv.ID,
			Amount:    inv.AmountPaid,
			Currency:  strings.ToUpper(string(inv.Currency)),
			Method:    "card",
			CreatedAt: evt.OccurredAt,
		}
		if evt.Kind == EventPaymentFailed {
			evt.Payment.Amount = inv.AmountDue
			evt.Payment.ErrorDescription = "invoice payment failed"
		}

	case "customer.subscription.deleted", "customer.subscription.paused", "customer.subscription.resumed":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		evt.ExternalID = sub.ID
		evt.UserRef = sub.Metadata["user_id"]
		evt.SubscriptionRef = sub.Metadata["subscription_id"]
		switch event.Type {
		case "customer.subscription.deleted":
			evt.Kind = EventSubscriptionCancelled
		case "customer.subscription.paused":
			evt.Kind = EventSubscriptionPaused
		default:
			evt.Kind = EventSubscriptionResumed
		}
	}
	return evt, nil
}
