package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("wrapped app error keeps its kind", func(t *testing.T) {
		err := fmt.Errorf("create: %w", Conflict("User already has an active subscription"))
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "User already has an active subscription", MessageOf(err))
	})

	t.Run("foreign error is unknown", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, KindUnknown, KindOf(err))
		assert.Equal(t, "Internal server error", MessageOf(err))
	})
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("Plan not found"))
	assert.True(t, errors.Is(err, NotFound("")))
	assert.True(t, errors.Is(err, NotFound("Plan not found")))
	assert.False(t, errors.Is(err, NotFound("User not found")))
	assert.False(t, errors.Is(err, Conflict("")))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("Razorpay error: connection refused", cause)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:    http.StatusBadRequest,
		KindNotFound:      http.StatusNotFound,
		KindConflict:      http.StatusConflict,
		KindInvalidState:  http.StatusConflict,
		KindNoOp:          http.StatusConflict,
		KindUnauthorized:  http.StatusUnauthorized,
		KindUpstreamError: http.StatusBadGateway,
		KindUnknown:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestErrorString(t *testing.T) {
	cause := errors.New("connection refused")
	assert.Equal(t, "UNKNOWN: save analysis: connection refused", Internal("", fmt.Errorf("save analysis: %w", cause)).Error())
	assert.Equal(t, "UPSTREAM_ERROR: Could not store photo: connection refused", Upstream("Could not store photo", cause).Error())
	assert.Equal(t, "NOT_FOUND: Plan not found", NotFound("Plan not found").Error())
	assert.Equal(t, "NO_OP", NoOp("").Error())
}
