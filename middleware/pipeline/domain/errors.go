package domain

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

// Kind is the wire-visible classification of a request failure. It is the
// value carried in the "error" field of the response envelope.
type Kind string

const (
	KindRateLimited    Kind = "RATE_LIMIT_HIT"
	KindTokenMissing   Kind = "TOKEN_MISSING"
	KindTokenMalformed Kind = "TOKEN_MALFORMED"
	KindTokenExpired   Kind = "TOKEN_EXPIRED"
	KindTokenSignature Kind = "TOKEN_INVALID_SIGNATURE"
	KindBadRequest     Kind = "BAD_REQUEST"
	KindInvalidPayload Kind = "INVALID_PAYLOAD"
	KindClientClosed   Kind = "CLIENT_CLOSED"
	KindServiceBusy    Kind = "SERVICE_BUSY"
	KindUpstream       Kind = "UPSTREAM_CALL_FAILED"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Error is a classified pipeline failure. Every error that reaches the
// exception boundary must be one of these; anything else is reported as
// KindInternal.
type Error struct {
	Kind   Kind
	Status int
	Detail any

	// RetryAfter is set only on rate-limit rejections and becomes the
	// Retry-After response header (rounded up to whole seconds).
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Category names the error family carried in the envelope "type" field.
func (e *Error) Category() string {
	switch e.Kind {
	case KindTokenMissing, KindTokenMalformed, KindTokenExpired, KindTokenSignature:
		return "AuthorizationError"
	case KindRateLimited:
		return "RateLimitError"
	case KindBadRequest:
		return "BizError"
	case KindInvalidPayload:
		return "DecodeError"
	case KindClientClosed:
		return "ClientDisconnect"
	case KindServiceBusy:
		return "ConcurrencyError"
	case KindUpstream:
		return "UpstreamError"
	default:
		return "InternalError"
	}
}

// RateLimited reports an admission rejection. The detail names the violated
// rule and the wait the client was asked to skip.
func RateLimited(rule RateRule, wait time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Status:     http.StatusTooManyRequests,
		RetryAfter: wait,
		Detail: map[string]any{
			"rule":  rule,
			"retry": math.Round(wait.Seconds()*100) / 100,
		},
	}
}

func TokenMissing() *Error {
	return &Error{Kind: KindTokenMissing, Status: http.StatusUnauthorized, Detail: "missing authentication credentials"}
}

func TokenMalformed(err error) *Error {
	return &Error{Kind: KindTokenMalformed, Status: http.StatusForbidden, Detail: "malformed token", Err: err}
}

func TokenExpired() *Error {
	return &Error{Kind: KindTokenExpired, Status: http.StatusForbidden, Detail: "token has expired"}
}

func TokenSignature() *Error {
	return &Error{Kind: KindTokenSignature, Status: http.StatusForbidden, Detail: "invalid token signature"}
}

func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Detail: detail}
}

func InvalidPayload(err error) *Error {
	return &Error{Kind: KindInvalidPayload, Status: http.StatusBadRequest, Detail: "invalid request payload", Err: err}
}

func ClientClosed(err error) *Error {
	return &Error{Kind: KindClientClosed, Status: 499, Detail: "client disconnected", Err: err}
}

func ServiceBusy() *Error {
	return &Error{Kind: KindServiceBusy, Status: http.StatusServiceUnavailable, Detail: "too many in-flight requests"}
}

func UpstreamFailure(err error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Detail: "upstream call failed", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Detail: "unexpected error", Err: err}
}
