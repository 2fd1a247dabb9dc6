package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"model-gateway/middleware/pipeline/domain"
)

// LocalBucketStore keeps token buckets in process memory on x/time/rate,
// with per-key caching and periodic cleanup of idle entries.
//
// It only meters traffic through one gateway instance; deployments with
// horizontal scaling need RedisBucketStore.
type LocalBucketStore struct {
	mu           sync.Mutex
	entries      map[string]*localBucket
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type localBucket struct {
	lim      *rate.Limiter
	rule     domain.RateRule
	lastSeen time.Time
}

type LocalOption func(*LocalBucketStore)

func WithIdleTTL(d time.Duration) LocalOption {
	return func(s *LocalBucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LocalOption {
	return func(s *LocalBucketStore) { s.cleanupEvery = d }
}

func NewLocalBucketStore(opts ...LocalOption) *LocalBucketStore {
	s := &LocalBucketStore{
		entries:      make(map[string]*localBucket),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implements domain.BucketStore. The rule travels with every call, so a
// hot config change replaces the cached limiter for that key.
func (s *LocalBucketStore) Take(_ context.Context, key string, rule domain.RateRule, now time.Time) (domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || ent.rule != rule {
		ent = &localBucket{
			lim:  rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst),
			rule: rule,
		}
		s.entries[key] = ent
	}
	ent.lastSeen = now

	if !ent.lim.AllowN(now, 1) {
		return domain.Lease{}, nil
	}
	remaining := ent.lim.TokensAt(now)
	if remaining < 0 {
		remaining = 0
	}
	return domain.Lease{Allowed: true, Remaining: remaining}, nil
}

func (s *LocalBucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor evicts idle buckets periodically until ctx is cancelled.
func (s *LocalBucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
