package gateway

import (
	"context"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"muscleai_backend/pkg/signature"
)

// The razorpay-go resources the adapter uses. Narrowed so tests can fake them.
type razorpayCustomers interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	All(queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayLinks interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(paymentLinkID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpaySubscriptions interface {
	Cancel(subscriptionID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayOptions struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Pricing       Pricing
}

type Razorpay struct {
	customers     razorpayCustomers
	links         razorpayLinks
	subscriptions razorpaySubscriptions
	keySecret     string
	webhookSecret string
	pricing       Pricing
}

func NewRazorpay(opts RazorpayOptions) *Razorpay {
	client := razorpay.NewClient(opts.KeyID, opts.KeySecret)
	return &Razorpay{
		customers:     client.Customer,
		links:         client.PaymentLink,
		subscriptions: client.Subscription,
		keySecret:     opts.KeySecret,
		webhookSecret: opts.WebhookSecret,
		pricing:       opts.Pricing,
	}
}

func (r *Razorpay) Name() string     { return ProviderRazorpay }
func (r *Razorpay) Pricing() Pricing { return r.pricing }

func rzpError(op string, err error) *Error {
	return &Error{Provider: ProviderRazorpay, Op: op, Description: err.Error(), Err: err}
}

// customerPageSize is the largest page the customers API returns.
const customerPageSize = 100

// EnsureCustomer creates the customer or returns the existing one for the same
// email and contact. fail_existing=0 makes Razorpay answer with the existing
// record; the paged lookup covers accounts that still report a conflict.
func (r *Razorpay) EnsureCustomer(ctx context.Context, c Customer) (string, error) {
	data := map[string]interface{}{
		"name":          c.Name,
		"email":         c.Email,
		"contact":       c.Contact,
		"fail_existing": "0",
	}

	resp, err := r.customers.Create(data, nil)
	if err == nil {
		id := str(resp["id"])
		if id == "" {
			return "", &Error{Provider: ProviderRazorpay, Op: "create customer", Description: "response carried no id", Err: ErrMalformedPayload}
		}
		return id, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return "", rzpError("create customer", err)
	}
	return r.findCustomer(c.Email)
}

func (r *Razorpay) findCustomer(email string) (string, error) {
	for skip := 0; ; skip += customerPageSize {
		list, err := r.customers.All(map[string]interface{}{"count": customerPageSize, "skip": skip}, nil)
		if err != nil {
			return "", rzpError("list customers", err)
		}
		items, _ := list["items"].([]interface{})
		for _, it := range items {
			cust, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.EqualFold(str(cust["email"]), email) {
				return str(cust["id"]), nil
			}
		}
		if len(items) < customerPageSize {
			break
		}
	}
	return "", &Error{Provider: ProviderRazorpay, Op: "list customers", Description: ErrCustomerNotFound.Error(), Err: ErrCustomerNotFound}
}

func (r *Razorpay) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	amount := r.pricing.MinorUnits(req.AmountUSD)

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}

	data := map[string]interface{}{
		"amount":         amount,
		"currency":       r.pricing.Currency,
		"accept_partial": false,
		"description":    req.Description,
		"reference_id":   req.ReferenceID,
		"customer": map[string]interface{}{
			"name":    req.Customer.Name,
			"email":   req.Customer.Email,
			"contact": req.Customer.Contact,
		},
		"notify": map[string]interface{}{
			"sms":   true,
			"email": true,
		},
		"reminder_enable": true,
		"notes":           notes,
		"callback_url":    req.CallbackURL,
		"callback_method": "get",
	}

	resp, err := r.links.Create(data, nil)
	if err != nil {
		return nil, rzpError("create payment link", err)
	}

	link := &PaymentLink{
		ID:       str(resp["id"]),
		ShortURL: str(resp["short_url"]),
		Amount:   amount,
		Currency: r.pricing.Currency,
	}
	if link.ID == "" {
		return nil, &Error{Provider: ProviderRazorpay, Op: "create payment link", Description: "response carried no id", Err: ErrMalformedPayload}
	}
	return link, nil
}

func (r *Razorpay) FetchPaymentLink(ctx context.Context, id string) (*LinkStatus, error) {
	resp, err := r.links.Fetch(id, nil, nil)
	if err != nil {
		return nil, rzpError("fetch payment link", err)
	}

	st := &LinkStatus{
		ID:       str(resp["id"]),
		Status:   str(resp["status"]),
		Amount:   int64Of(resp["amount_paid"]),
		Currency: str(resp["currency"]),
		Notes:    notesOf(resp["notes"]),
	}
	st.Paid = st.Status == "paid"
	if st.Amount == 0 {
		st.Amount = int64Of(resp["amount"])
	}

	// The latest captured payment on the link, if the API returned them.
	if payments, ok := resp["payments"].([]interface{}); ok {
		for _, p := range payments {
			pm, ok := p.(map[string]interface{})
			if !ok || str(pm["status"]) != "captured" {
				continue
			}
			st.PaymentID = str(pm["payment_id"])
			st.Method = str(pm["method"])
		}
	}
	return st, nil
}

func (r *Razorpay) IsRecurring(id string) bool {
	return strings.HasPrefix(id, "sub_")
}

func (r *Razorpay) CancelAtCycleEnd(ctx context.Context, id string) error {
	if !r.IsRecurring(id) {
		return nil
	}
	if _, err := r.subscriptions.Cancel(id, map[string]interface{}{"cancel_at_cycle_end": 1}, nil); err != nil {
		return rzpError("cancel subscription", err)
	}
	return nil
}

func (r *Razorpay) ParseCallback(query func(string) string) (*Callback, error) {
	cb := &Callback{
		LinkID:      query("razorpay_payment_link_id"),
		PaymentID:   query("razorpay_payment_id"),
		ReferenceID: query("razorpay_payment_link_reference_id"),
		Status:      query("razorpay_payment_link_status"),
	}
	if cb.LinkID == "" {
		return nil, ErrMalformedPayload
	}

	sig := query("razorpay_signature")
	if err := signature.Joined(r.keySecret, sig, cb.LinkID, cb.ReferenceID, cb.Status, cb.PaymentID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return cb, nil
}

func (r *Razorpay) VerifyPayment(paymentID, subscriptionID, sig string) error {
	if err := signature.Joined(r.keySecret, sig, paymentID, subscriptionID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func int64Of(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

// notesOf flattens a Razorpay notes value, which is an object or an empty array.
func notesOf(v interface{}) map[string]string {
	out := map[string]string{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for k, val := range m {
		out[k] = str(val)
	}
	return out
}
