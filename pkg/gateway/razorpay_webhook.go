package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"muscleai_backend/pkg/signature"
)

const (
	RazorpaySignatureHeader = "X-Razorpay-Signature"
	RazorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type notes map[string]string

// UnmarshalJSON accepts Razorpay's notes, which arrive as [] when empty and may
// carry non-string values.
func (n *notes) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = notesOf(raw)
	return nil
}

type rzpPaymentEntity struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	OrderID          string `json:"order_id"`
	SubscriptionID   string `json:"subscription_id"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Notes            notes  `json:"notes"`
	CreatedAt        int64  `json:"created_at"`
}

type rzpLinkEntity struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	Notes       notes  `json:"notes"`
}

type rzpSubscriptionEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Notes  notes  `json:"notes"`
}

type rzpWebhook struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity rzpPaymentEntity `json:"entity"`
		} `json:"payment"`
		PaymentLink *struct {
			Entity rzpLinkEntity `json:"entity"`
		} `json:"payment_link"`
		Subscription *struct {
			Entity rzpSubscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

func (r *Razorpay) ParseWebhook(body []byte, header func(string) string) (*Event, error) {
	if err := signature.Verify(r.webhookSecret, body, header(RazorpaySignatureHeader)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	evt, err := decodeRazorpayWebhook(body)
	if err != nil {
		return nil, err
	}
	evt.DeliveryID = header(RazorpayEventIDHeader)
	return evt, nil
}

func decodeRazorpayWebhook(body []byte) (*Event, error) {
	var w rzpWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}

	evt := &Event{
		Provider: ProviderRazorpay,
		Kind:     EventKind(w.Event),
		Source:   SourceWebhook,
	}
	if w.CreatedAt > 0 {
		evt.OccurredAt = time.Unix(w.CreatedAt, 0).UTC()
	}

	var ref notes
	if p := w.Payload.Payment; p != nil {
		e := p.Entity
		evt.Payment = &Payment{
			ID:               e.ID,
			OrderID:          e.OrderID,
			Amount:           e.Amount,
			Currency:         e.Currency,
			Method:           e.Method,
			ErrorCode:        e.ErrorCode,
			ErrorDescription: e.ErrorDescription,
		}
		if e.CreatedAt > 0 {
			evt.Payment.CreatedAt = time.Unix(e.CreatedAt, 0).UTC()
		}
		ref = e.Notes
		if e.SubscriptionID != "" {
			evt.ExternalID = e.SubscriptionID
		}
	}
	if s := w.Payload.Subscription; s != nil {
		evt.ExternalID = s.Entity.ID
		ref = merge(ref, s.Entity.Notes)
	}
	if l := w.Payload.PaymentLink; l != nil {
		evt.ExternalID = l.Entity.ID
		ref = merge(ref, l.Entity.Notes)
		if l.Entity.ReferenceID != "" && ref["subscription_id"] == "" {
			ref["subscription_id"] = l.Entity.ReferenceID
		}
		if evt.Payment != nil && evt.Payment.OrderID == "" {
			evt.Payment.OrderID = l.Entity.ID
		}
	}

	evt.SubscriptionRef = ref["subscription_id"]
	evt.UserRef = ref["user_id"]
	return evt, nil
}

func merge(dst, src notes) notes {
	if dst == nil {
		dst = notes{}
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
