package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"payment_link.paid"}`)
	sig := Sign(secret, body)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Verify(secret, body, sig))
	})

	t.Run("uppercase hex is accepted", func(t *testing.T) {
		assert.NoError(t, Verify(secret, body, strings.ToUpper(sig)))
	})

	t.Run("tampered body", func(t *testing.T) {
		assert.ErrorIs(t, Verify(secret, []byte(`{"event":"payment.failed"}`), sig), ErrMismatch)
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.ErrorIs(t, Verify("other", body, sig), ErrMismatch)
	})

	t.Run("not hex", func(t *testing.T) {
		assert.ErrorIs(t, Verify(secret, body, "zz-not-hex"), ErrMismatch)
	})

	t.Run("missing signature", func(t *testing.T) {
		assert.ErrorIs(t, Verify(secret, body, " "), ErrMissingSignature)
	})

	t.Run("missing secret", func(t *testing.T) {
		assert.ErrorIs(t, Verify("", body, sig), ErrMissingSecret)
	})
}

func TestJoined(t *testing.T) {
	secret := "key_secret"
	sig := Sign(secret, []byte("pay_123|sub_456"))

	assert.NoError(t, Joined(secret, sig, "pay_123", "sub_456"))
	assert.ErrorIs(t, Joined(secret, sig, "pay_123", "sub_789"), ErrMismatch)
}

func TestSignKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}
