// Package signature signs and verifies gateway payloads with hex HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSecret    = errors.New("signature: secret is required")
	ErrMissingSignature = errors.New("signature: signature is missing")
	ErrMismatch         = errors.New("signature: mismatch")
)

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks signature against payload in constant time.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMismatch
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	if !hmac.Equal(got, h.Sum(nil)) {
		return ErrMismatch
	}
	return nil
}

// Joined verifies a signature over parts joined with "|", the form Razorpay
// uses for checkout, subscription and payment-link callbacks.
func Joined(secret, signature string, parts ...string) error {
	return Verify(secret, []byte(strings.Join(parts, "|")), signature)
}
