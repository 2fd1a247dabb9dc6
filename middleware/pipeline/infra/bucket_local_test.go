package infra

import (
	"context"
	"testing"
	"time"

	"model-gateway/middleware/pipeline/domain"
)

func TestLocalBucketStore_BurstDrains(t *testing.T) {
	s := NewLocalBucketStore()
	rule := domain.RateRule{Burst: 1, Rate: 0.02, MaxWait: time.Second}
	now := time.Now()

	lease, err := s.Take(context.Background(), "k", rule, now)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !lease.Allowed {
		t.Fatalf("expected first take to pass")
	}

	lease, err = s.Take(context.Background(), "k", rule, now)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if lease.Allowed {
		t.Fatalf("expected second immediate take to be denied (burst=1)")
	}
}

func TestLocalBucketStore_RuleChangeReplacesBucket(t *testing.T) {
	s := NewLocalBucketStore()
	now := time.Now()

	tight := domain.RateRule{Burst: 1, Rate: 0.02, MaxWait: time.Second}
	if lease, _ := s.Take(context.Background(), "k", tight, now); !lease.Allowed {
		t.Fatalf("expected take under the tight rule to pass")
	}
	if lease, _ := s.Take(context.Background(), "k", tight, now); lease.Allowed {
		t.Fatalf("expected tight rule to be drained")
	}

	// a hot config change must not keep serving the drained bucket
	wide := domain.RateRule{Burst: 5, Rate: 1, MaxWait: time.Second}
	if lease, _ := s.Take(context.Background(), "k", wide, now); !lease.Allowed {
		t.Fatalf("expected fresh bucket after rule change")
	}
}

func TestLocalBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewLocalBucketStore(WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))
	rule := domain.RateRule{Burst: 1, Rate: 0.02, MaxWait: time.Second}

	if lease, _ := s.Take(context.Background(), "k", rule, time.Now()); !lease.Allowed {
		t.Fatalf("expected first take to pass")
	}
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	// the drained bucket is gone, so the key starts full again
	if lease, _ := s.Take(context.Background(), "k", rule, time.Now()); !lease.Allowed {
		t.Fatalf("expected bucket to be recreated after cleanup")
	}
}
