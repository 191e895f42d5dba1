package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	v := NewVerifier("test-secret")
	id := uuid.New()

	token, err := v.GenerateToken(id, "asha@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", claims.Email)
	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestValidateTokenRejects(t *testing.T) {
	v := NewVerifier("test-secret")
	id := uuid.New()

	expired, err := v.GenerateToken(id, "a@example.com", -time.Minute)
	require.NoError(t, err)
	other, err := NewVerifier("other-secret").GenerateToken(id, "a@example.com", time.Hour)
	require.NoError(t, err)

	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}
	anon := sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: id.String(), Audience: jwt.ClaimStrings{"anon"}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	badSub := sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "service", Audience: jwt.ClaimStrings{"authenticated"}, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})

	for name, token := range map[string]string{
		"expired":       expired,
		"wrong secret":  other,
		"anon audience": anon,
		"bad subject":   badSub,
		"garbage":       "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
