package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline/domain"
)

// AdmissionService resolves the effective rate rule for a request and runs
// the token-bucket admission loop against the shared store.
//
// It returns a Decision, never writing HTTP itself. A store failure is
// surfaced as an error: admission fails closed rather than letting traffic
// through unmetered.
type AdmissionService struct {
	Buckets domain.BucketStore
	Config  domain.ConfigProvider

	// Stats is optional best-effort bookkeeping; Record errors are ignored.
	Stats domain.StatsStore

	// Now and Sleep are injectable for tests. Sleep must observe ctx.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Admit decides whether one request for (route, ip) may proceed.
//
// When the bucket is empty it suspends the request for the rule's refill
// interval and retries, as long as that wait fits the rule's MaxWait budget.
// A denied request with wait > MaxWait is rejected without mutation. Caller
// cancellation aborts the wait loop.
func (s AdmissionService) Admit(ctx context.Context, route, ip string) (domain.Decision, error) {
	snap, err := s.Config.Snapshot(ctx)
	if err != nil {
		return domain.Decision{}, domain.UpstreamFailure(err)
	}

	rule := snap.Rates.Resolve(route, ip)
	key := domain.BucketKey(route, ip)

	for {
		lease, err := s.Buckets.Take(ctx, key, rule, s.now())
		if err != nil {
			return domain.Decision{}, domain.UpstreamFailure(err)
		}

		if lease.Allowed {
			s.record(ctx, key, route, ip, true)
			return domain.Decision{Allowed: true, Remaining: lease.Remaining, Rule: rule}, nil
		}

		wait := rule.Wait()
		if wait > rule.MaxWait {
			s.record(ctx, key, route, ip, false)
			log.Logger().Info("admission rejected",
				zap.String("route", route),
				zap.String("ip", ip),
				zap.Int("burst", rule.Burst),
				zap.Float64("rate", rule.Rate),
				zap.Duration("wait", wait),
			)
			return domain.Decision{Allowed: false, RetryAfter: wait, Rule: rule}, nil
		}

		if err := s.sleep(ctx, wait); err != nil {
			return domain.Decision{}, err
		}
	}
}

func (s AdmissionService) record(ctx context.Context, key, route, ip string, allowed bool) {
	if s.Stats == nil {
		return
	}
	_ = s.Stats.Record(ctx, domain.StatsEvent{
		Key:     key,
		Route:   route,
		IP:      ip,
		Allowed: allowed,
		At:      s.now(),
	})
}

func (s AdmissionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s AdmissionService) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
