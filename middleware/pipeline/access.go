package pipeline

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline/domain"
)

// DefaultSlowThreshold is the elapsed time above which a request is logged
// as slow.
const DefaultSlowThreshold = 300 * time.Millisecond

// Access is the trace/access logging stage. It reuses the trace id
// established at ingress, times the request, writes the X-Trace-ID and
// X-Process-Time headers and logs one ingress and one egress line per
// request. It has no suspension points.
func Access(slow time.Duration) Stage {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return func(next Handler) Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			ac, ok := domain.AccessFrom(r.Context())
			if !ok {
				ac = domain.AccessContext{TraceID: domain.NewTraceID(), ClientIP: ClientIP(r), Start: time.Now()}
				r = r.WithContext(domain.WithAccess(r.Context(), ac))
			}
			start := time.Now()

			w.Header().Set(domain.TraceHeader, ac.TraceID)

			log.Logger().Info("incoming",
				zap.String("trace_id", ac.TraceID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("from", ac.ClientIP),
			)

			tw := &timedWriter{ResponseWriter: w, start: start}
			err := next(tw, r)

			elapsed := time.Since(start)
			if err != nil && tw.status == 0 {
				// the boundary writes the failure; stamp the timing here
				w.Header().Set("X-Process-Time", formatFloat(round2(float64(elapsed.Microseconds())/1000)))
			}
			if elapsed > slow {
				log.Logger().Warn("slow request",
					zap.String("trace_id", ac.TraceID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("elapsed", elapsed),
				)
			}

			log.Logger().Info("outgoing",
				zap.String("trace_id", ac.TraceID),
				zap.String("path", r.URL.Path),
				zap.Int("status", tw.status),
				zap.Duration("elapsed", elapsed),
			)

			return err
		}
	}
}

// timedWriter injects X-Process-Time when the response is committed, since
// headers cannot change once the handler starts writing.
type timedWriter struct {
	http.ResponseWriter
	start  time.Time
	status int
}

func (w *timedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
		ms := float64(time.Since(w.start).Microseconds()) / 1000
		w.Header().Set("X-Process-Time", formatFloat(round2(ms)))
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
