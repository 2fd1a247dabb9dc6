package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TraceHeader propagates the request correlation id.
const TraceHeader = "X-Trace-ID"

// AccessContext is the per-request tracing state created at ingress.
type AccessContext struct {
	TraceID  string
	ClientIP string
	Start    time.Time
}

type accessKey struct{}

// WithAccess attaches the access context to a request context.
func WithAccess(ctx context.Context, ac AccessContext) context.Context {
	return context.WithValue(ctx, accessKey{}, ac)
}

// AccessFrom returns the access context attached at ingress, if any.
func AccessFrom(ctx context.Context) (AccessContext, bool) {
	ac, ok := ctx.Value(accessKey{}).(AccessContext)
	return ac, ok
}

// NewTraceID generates an opaque request correlation id.
func NewTraceID() string {
	return uuid.NewString()
}
