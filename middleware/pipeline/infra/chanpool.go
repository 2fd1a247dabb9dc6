package infra

import (
	"context"

	"model-gateway/middleware/pipeline/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool creates a channel-backed semaphore with capacity max.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
