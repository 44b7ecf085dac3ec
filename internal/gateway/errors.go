package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category in the gateway's taxonomy.
//
// Pipeline codes form a closed set: every request that fails before its
// handler runs carries exactly one of them. Handler codes are the extensible
// set surfaced by action handlers through the same envelope shape.
type Code string

// Pipeline error codes. A response with ok=false produced by the pipeline
// itself always carries one of these.
const (
	// CodeParseError indicates a malformed or unparseable request body.
	CodeParseError Code = "PARSE_ERROR"

	// CodeHeaderInvalid indicates a missing or malformed identity header.
	CodeHeaderInvalid Code = "HEADER_INVALID"

	// CodeVersionUnsupported indicates a client older than the minimum
	// supported extension version.
	CodeVersionUnsupported Code = "VERSION_UNSUPPORTED"

	// CodeUnauthorized indicates a missing, invalid or expired token on an
	// action that requires one.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeForbiddenScope indicates a valid token that lacks the scope the
	// action requires.
	CodeForbiddenScope Code = "FORBIDDEN_SCOPE"

	// CodeDuplicateRequest indicates the same physical transmission arrived
	// twice within the replay TTL.
	CodeDuplicateRequest Code = "DUPLICATE_REQUEST"

	// CodeOperationInProgress indicates a concurrent call holding the same
	// idempotency key is still executing.
	CodeOperationInProgress Code = "OPERATION_IN_PROGRESS"

	// CodeRateLimited indicates the identity exhausted its budget for the
	// action's category in the active window.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeUnknownAction indicates the action resolves to no registered handler.
	CodeUnknownAction Code = "UNKNOWN_ACTION"
)

// Handler error codes. Handlers may also define their own.
const (
	// CodeInvalidPayload indicates the payload failed the action's schema.
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	// CodeHandlerError indicates the handler failed while executing.
	CodeHandlerError Code = "HANDLER_ERROR"

	// CodeInternal indicates an unexpected gateway-side failure.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps a code to the transport status used by the HTTP server.
// Callers are expected to branch on ok/code, not on transport status alone.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeParseError, CodeHeaderInvalid, CodeUnknownAction, CodeInvalidPayload:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbiddenScope:
		return http.StatusForbidden
	case CodeDuplicateRequest, CodeOperationInProgress:
		return http.StatusConflict
	case CodeVersionUnsupported:
		return http.StatusUpgradeRequired
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed failure produced by pipeline stages and handlers.
//
// Every failure path in the gateway produces exactly one Error; nothing is
// silently swallowed. Details carries optional diagnostic values that are
// echoed to the client in the response envelope.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns e with an added diagnostic key/value.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the taxonomy code from err. Unrecognized errors map to
// CodeInternal so that every failure still surfaces a code.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given taxonomy code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// asError coerces any handler error into an *Error. Untyped errors become
// HANDLER_ERROR so business failures and gateway failures stay distinguishable.
func asError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Code: CodeHandlerError, Message: err.Error()}
}
