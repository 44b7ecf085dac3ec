package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeParseError:          http.StatusBadRequest,
		CodeHeaderInvalid:       http.StatusBadRequest,
		CodeUnknownAction:       http.StatusBadRequest,
		CodeInvalidPayload:      http.StatusBadRequest,
		CodeUnauthorized:        http.StatusUnauthorized,
		CodeForbiddenScope:      http.StatusForbidden,
		CodeDuplicateRequest:    http.StatusConflict,
		CodeOperationInProgress: http.StatusConflict,
		CodeVersionUnsupported:  http.StatusUpgradeRequired,
		CodeRateLimited:         http.StatusTooManyRequests,
		CodeHandlerError:        http.StatusInternalServerError,
		CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %s", code)
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeRateLimited, CodeOf(NewError(CodeRateLimited, "slow down")))
	assert.Equal(t, CodeRateLimited, CodeOf(fmt.Errorf("wrapped: %w", NewError(CodeRateLimited, "slow down"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("mystery")))
}

func TestIsCode(t *testing.T) {
	err := NewError(CodeUnauthorized, "nope")
	assert.True(t, IsCode(err, CodeUnauthorized))
	assert.False(t, IsCode(err, CodeRateLimited))
	assert.False(t, IsCode(errors.New("plain"), CodeUnauthorized))
}

func TestWithDetail(t *testing.T) {
	err := NewError(CodeRateLimited, "slow down").
		WithDetail("retryAfter", 30).
		WithDetail("category", "import")
	assert.Equal(t, 30, err.Details["retryAfter"])
	assert.Equal(t, "import", err.Details["category"])
	assert.Equal(t, "RATE_LIMITED: slow down", err.Error())
}

func TestAsErrorWrapsUntyped(t *testing.T) {
	ge := asError(errors.New("db closed"))
	assert.Equal(t, CodeHandlerError, ge.Code)
	assert.Equal(t, "db closed", ge.Message)

	typed := NewError(CodeInvalidPayload, "bad")
	assert.Same(t, typed, asError(typed))
}
