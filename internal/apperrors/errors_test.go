package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NewInvalidStateError("AWB already assigned")
	wrapped := fmt.Errorf("assign: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidState))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindInvalidState, KindOf(wrapped))
}

func TestKindOfUntypedError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewNotFoundError("order", "o-1"), http.StatusNotFound},
		{NewInvalidStateError("nope"), http.StatusConflict},
		{NewRequiresConfirmationError("IN_TRANSIT"), http.StatusConflict},
		{NewConfigurationError("disabled"), http.StatusUnprocessableEntity},
		{NewNotServiceableError("no couriers"), http.StatusUnprocessableEntity},
		{NewAuthenticationError("login failed"), http.StatusBadGateway},
		{NewAggregatorError("upstream 500"), http.StatusBadGateway},
		{NewUnknownOutcomeError("create order"), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := NewAggregatorError("create order failed").WithCause(errors.New("dial tcp 10.0.0.1: password=secret"))

	msg := PublicMessage(err)
	assert.Contains(t, msg, "create order failed")
	assert.NotContains(t, msg, "secret")

	assert.Equal(t, "internal error", PublicMessage(errors.New("password=secret")))
	assert.Equal(t, "courier aggregator authentication failed", PublicMessage(NewAuthenticationError("invalid email or password")))
}

func TestPublicMessageIsTruncated(t *testing.T) {
	err := NewAggregatorError(strings.Repeat("x", 500))
	assert.Len(t, PublicMessage(err), maxPublicMessage)
}

func TestRequiresConfirmationCarriesStatus(t *testing.T) {
	err := NewRequiresConfirmationError("IN_TRANSIT")

	assert.Equal(t, "IN_TRANSIT", PublicDetails(err)["currentStatus"])
	assert.Contains(t, err.Error(), "force")
}

func TestUnknownOutcomeSuggestsSync(t *testing.T) {
	err := NewUnknownOutcomeError("assign AWB")

	assert.True(t, errors.Is(err, ErrUnknownOutcome))
	assert.Contains(t, PublicMessage(err), "sync")
	assert.Equal(t, "assign AWB", PublicDetails(err)["operation"])
}
