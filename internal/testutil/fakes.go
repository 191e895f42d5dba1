package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"muscleai_backend/pkg/email"
	"muscleai_backend/pkg/gateway"
)

// FakeGateway is an in-memory provider. Webhook bodies are JSON-encoded
// gateway.Event values and a signature of "ok" is valid everywhere.
type FakeGateway struct {
	name      string
	seq       int
	Links     map[string]*gateway.LinkStatus
	Requests  []gateway.PaymentLinkRequest
	Cancelled []string
	Customers int
	LinkErr   error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{name: gateway.ProviderRazorpay, Links: map[string]*gateway.LinkStatus{}}
}

func (f *FakeGateway) Name() string { return f.name }

func (f *FakeGateway) Pricing() gateway.Pricing { return gateway.INRPricing(decimal.NewFromInt(83)) }

func (f *FakeGateway) EnsureCustomer(ctx context.Context, c gateway.Customer) (string, error) {
	f.Customers++
	return fmt.Sprintf("cust_%d", f.Customers), nil
}

func (f *FakeGateway) CreatePaymentLink(ctx context.Context, req gateway.PaymentLinkRequest) (*gateway.PaymentLink, error) {
	if f.LinkErr != nil {
		return nil, f.LinkErr
	}
	f.seq++
	f.Requests = append(f.Requests, req)
	id := fmt.Sprintf("plink_%d", f.seq)
	amount := f.Pricing().MinorUnits(req.AmountUSD)
	f.Links[id] = &gateway.LinkStatus{ID: id, Status: "created", Amount: amount, Currency: "INR", Notes: req.Notes}
	return &gateway.PaymentLink{ID: id, ShortURL: "https://rzp.io/i/" + id, Amount: amount, Currency: "INR"}, nil
}

// Pay marks a link as paid by paymentID.
func (f *FakeGateway) Pay(linkID, paymentID string) {
	l := f.Links[linkID]
	l.Status = "paid"
	l.Paid = true
	l.PaymentID = paymentID
	l.Method = "upi"
}

func (f *FakeGateway) FetchPaymentLink(ctx context.Context, id string) (*gateway.LinkStatus, error) {
	l, ok := f.Links[id]
	if !ok {
		return nil, &gateway.Error{Provider: f.name, Op: "fetch payment link", Description: "The id provided does not exist"}
	}
	cp := *l
	return &cp, nil
}

func (f *FakeGateway) IsRecurring(id string) bool { return strings.HasPrefix(id, "sub_") }

func (f *FakeGateway) CancelAtCycleEnd(ctx context.Context, id string) error {
	f.Cancelled = append(f.Cancelled, id)
	return nil
}

func (f *FakeGateway) ParseWebhook(body []byte, header func(string) string) (*gateway.Event, error) {
	if header("X-Signature") != "ok" {
		return nil, gateway.ErrInvalidSignature
	}
	var evt gateway.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, gateway.ErrMalformedPayload
	}
	evt.Provider = f.name
	evt.Source = gateway.SourceWebhook
	evt.DeliveryID = header("X-Event-Id")
	return &evt, nil
}

func (f *FakeGateway) ParseCallback(query func(string) string) (*gateway.Callback, error) {
	cb := &gateway.Callback{
		LinkID:      query("link_id"),
		PaymentID:   query("payment_id"),
		ReferenceID: query("reference_id"),
		Status:      query("status"),
	}
	if cb.LinkID == "" {
		return nil, gateway.ErrMalformedPayload
	}
	if query("signature") != "ok" {
		return nil, gateway.ErrInvalidSignature
	}
	return cb, nil
}

func (f *FakeGateway) VerifyPayment(paymentID, subscriptionID, sig string) error {
	if sig != "ok" {
		return gateway.ErrInvalidSignature
	}
	return nil
}

// SentMail is one email captured by FakeMailer.
type SentMail struct {
	Template string
	To       string
	Data     interface{}
}

// FakeMailer records emails instead of sending them.
type FakeMailer struct {
	Sent []SentMail
}

func (m *FakeMailer) record(template, to string, data interface{}) error {
	m.Sent = append(m.Sent, SentMail{Template: template, To: to, Data: data})
	return nil
}

func (m *FakeMailer) SendSubscriptionStartedEmail(ctx context.Context, to string, data email.SubscriptionStartedData) error {
	return m.record("subscription_started", to, data)
}

func (m *FakeMailer) SendSubscriptionCancelledEmail(ctx context.Context, to string, data email.SubscriptionCancelledData) error {
	return m.record("subscription_cancelled", to, data)
}

func (m *FakeMailer) SendSubscriptionExpiryWarning(ctx context.Context, to string, data email.SubscriptionExpiryWarningData) error {
	return m.record("subscription_expiry_warning", to, data)
}

func (m *FakeMailer) SendPaymentFailedEmail(ctx context.Context, to string, data email.PaymentFailedData) error {
	return m.record("payment_failed", to, data)
}

func (m *FakeMailer) Templates() []string {
	out := make([]string, 0, len(m.Sent))
	for _, s := range m.Sent {
		out = append(out, s.Template)
	}
	return out
}
