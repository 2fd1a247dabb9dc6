package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline/domain"
)

// envelope is the uniform wire shape of every failure response.
type envelope struct {
	Error   domain.Kind `json:"error"`
	Details any         `json:"details"`
	Type    string      `json:"type"`
	TraceID string      `json:"trace_id"`
}

// Boundary is the outermost layer of the pipeline. It establishes the
// per-request access context (reusing an inbound trace id when one was set
// upstream) and converts every returned error and recovered panic into the
// JSON envelope. Nothing below it may leak an unclassified failure to the
// transport.
func Boundary(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := domain.AccessContext{
			TraceID:  r.Header.Get(domain.TraceHeader),
			ClientIP: ClientIP(r),
			Start:    time.Now(),
		}
		if ac.TraceID == "" {
			ac.TraceID = domain.NewTraceID()
		}
		r = r.WithContext(domain.WithAccess(r.Context(), ac))

		defer func() {
			if rec := recover(); rec != nil {
				writeFailure(w, r, domain.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()

		if err := h(w, r); err != nil {
			writeFailure(w, r, err)
		}
	})
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	derr := classify(r, err)

	ac, _ := domain.AccessFrom(r.Context())
	if ac.TraceID == "" {
		// the tracer layer never ran for this request
		ac.TraceID = domain.NewTraceID()
	}

	log.Logger().Error("request failed",
		zap.String("trace_id", ac.TraceID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("kind", string(derr.Kind)),
		zap.Int("status", derr.Status),
		zap.Error(err),
	)

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set(domain.TraceHeader, ac.TraceID)
	if derr.RetryAfter > 0 {
		h.Set("Retry-After", formatInt(int(math.Ceil(derr.RetryAfter.Seconds()))))
	}

	w.WriteHeader(derr.Status)
	_ = json.NewEncoder(w).Encode(envelope{
		Error:   derr.Kind,
		Details: derr.Detail,
		Type:    derr.Category(),
		TraceID: ac.TraceID,
	})
}

// classify maps an arbitrary failure onto the taxonomy. Typed domain errors
// pass through; caller cancellation becomes CLIENT_CLOSED; everything else
// is INTERNAL_ERROR.
func classify(r *http.Request, err error) *domain.Error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
		return domain.ClientClosed(err)
	}
	return domain.Internal(err)
}
