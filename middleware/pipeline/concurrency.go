package pipeline

import (
	"net/http"
	"time"

	"model-gateway/middleware/pipeline/application"
	"model-gateway/middleware/pipeline/domain"
	"model-gateway/middleware/pipeline/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
}

// Concurrency bounds in-flight requests with a channel semaphore. With
// Max <= 0 the stage is a no-op.
func Concurrency(opts ConcurrencyOptions) Stage {
	if opts.Max <= 0 {
		return func(next Handler) Handler { return next }
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next Handler) Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				return domain.ServiceBusy()
			}
			defer release()

			return next(w, r)
		}
	}
}
