package application

import (
	"context"
	"time"

	"model-gateway/middleware/pipeline/domain"
)

// ConcurrencyService bounds in-flight requests with an optional acquire
// timeout, without knowing anything about HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tries to take a slot.
//   - With AcquireTimeout <= 0 it waits until ctx ends.
//   - With AcquireTimeout > 0 it waits at most that long.
//
// Returns (release, ok); when ok is false no slot was taken.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
