package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRateConfig_ResolvePrecedence(t *testing.T) {
	cfg := RateConfig{
		Default: RateOverride{Burst: intp(10), Rate: floatp(2), MaxWait: floatp(1)},
		Routes: map[string]RateOverride{
			"/x": {Burst: intp(2)},
		},
		IP: map[string]RateOverride{
			"1.2.3.4": {Rate: floatp(0.2)},
		},
	}

	rule := cfg.Resolve("/x", "1.2.3.4")
	if rule.Burst != 2 {
		t.Fatalf("expected route burst override 2, got %d", rule.Burst)
	}
	if rule.Rate != 0.2 {
		t.Fatalf("expected ip rate override 0.2, got %v", rule.Rate)
	}
	if rule.MaxWait != 1*time.Second {
		t.Fatalf("expected max wait to fall through to default 1s, got %s", rule.MaxWait)
	}
}

func TestRateConfig_ResolveFallsBackToBase(t *testing.T) {
	rule := RateConfig{}.Resolve("/anything", "9.9.9.9")
	if rule.Burst != 10 || rule.Rate != 2 || rule.MaxWait != time.Second {
		t.Fatalf("expected base rule {10, 2, 1s}, got %+v", rule)
	}
}

func TestRateRule_Wait(t *testing.T) {
	rule := RateRule{Burst: 2, Rate: 0.2, MaxWait: time.Second}
	if got := rule.Wait(); got != 5*time.Second {
		t.Fatalf("expected 5s wait for rate 0.2, got %s", got)
	}
}

func TestRateRule_TTL(t *testing.T) {
	rule := RateRule{Burst: 10, Rate: 2}
	// ceil(10/2)+2 seconds
	if got := rule.TTL(); got != 7*time.Second {
		t.Fatalf("expected 7s ttl, got %s", got)
	}
}

func TestRateRule_MarshalJSONUsesSeconds(t *testing.T) {
	b, err := json.Marshal(RateRule{Burst: 2, Rate: 0.2, MaxWait: 1500 * time.Millisecond})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["max_wait"] != 1.5 {
		t.Fatalf("expected max_wait=1.5, got %v", m["max_wait"])
	}
}

func TestBucketKey_DistinctPerRouteAndIP(t *testing.T) {
	a := BucketKey("/rerank", "1.1.1.1")
	b := BucketKey("/rerank", "2.2.2.2")
	c := BucketKey("/predict", "1.1.1.1")

	if a == b {
		t.Fatalf("expected distinct keys per ip")
	}
	if a == c {
		t.Fatalf("expected distinct keys per route")
	}
	if a != BucketKey("/rerank", "1.1.1.1") {
		t.Fatalf("expected stable key for same (route, ip)")
	}
}

func TestDefaultSnapshot_SeedsAllowList(t *testing.T) {
	snap := DefaultSnapshot()
	for _, p := range []string{"/", "/status"} {
		if !snap.Allow.Contains(p) {
			t.Fatalf("expected %q on the default allow list", p)
		}
	}
	if snap.Allow.Contains("/rerank") {
		t.Fatalf("expected /rerank to require auth")
	}
}
