package pipeline

import (
	"net/http"

	"model-gateway/middleware/pipeline/application"
	"model-gateway/middleware/pipeline/domain"
)

// RateLimit performs admission control for (route, client IP) before the
// request reaches authentication or the handler.
//
// On success the response advertises the effective rule and the remaining
// tokens; on rejection the returned error carries the violated rule and the
// computed wait, which the boundary turns into a 429 with Retry-After.
func RateLimit(svc application.AdmissionService) Stage {
	return func(next Handler) Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			ac, _ := domain.AccessFrom(r.Context())

			dec, err := svc.Admit(r.Context(), r.URL.Path, ac.ClientIP)
			if err != nil {
				return err
			}
			if !dec.Allowed {
				return domain.RateLimited(dec.Rule, dec.RetryAfter)
			}

			w.Header().Set("X-Rate-Limit", formatInt(dec.Rule.Burst)+" burst / "+formatFloat(dec.Rule.Rate)+"/s")
			w.Header().Set("X-Rate-Remaining", formatFloat(round2(dec.Remaining)))

			return next(w, r)
		}
	}
}
