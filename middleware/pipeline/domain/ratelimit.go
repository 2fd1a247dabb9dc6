package domain

// Rate policy types and the layered merge that produces the effective rule
// for a (route, client IP) pair.

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"strconv"
	"time"
)

// RateRule is one fully-resolved admission policy.
type RateRule struct {
	Burst   int
	Rate    float64 // tokens per second
	MaxWait time.Duration
}

// baseRule is the hardcoded fallback applied below every config layer.
var baseRule = RateRule{Burst: 10, Rate: 2, MaxWait: time.Second}

// MarshalJSON emits the rule in its config wire shape, with max_wait in
// seconds.
func (r RateRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"burst":    r.Burst,
		"rate":     r.Rate,
		"max_wait": r.MaxWait.Seconds(),
	})
}

// Wait is how long a denied request is asked to back off before retrying.
func (r RateRule) Wait() time.Duration {
	if r.Rate <= 0 {
		return r.MaxWait + time.Second
	}
	return time.Duration(float64(time.Second) / r.Rate)
}

// TTL is the bucket expiry: time for an empty bucket to refill plus slack.
func (r RateRule) TTL() time.Duration {
	if r.Rate <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(r.Burst)/r.Rate)+2) * time.Second
}

// RateOverride is one config layer. A nil field means the layer does not
// override that field and the value falls through to the layer below.
type RateOverride struct {
	Burst   *int     `json:"burst,omitempty"`
	Rate    *float64 `json:"rate,omitempty"`
	MaxWait *float64 `json:"max_wait,omitempty"` // seconds
}

func (o RateOverride) apply(r *RateRule) {
	if o.Burst != nil {
		r.Burst = *o.Burst
	}
	if o.Rate != nil {
		r.Rate = *o.Rate
	}
	if o.MaxWait != nil {
		r.MaxWait = time.Duration(*o.MaxWait * float64(time.Second))
	}
}

// RateConfig is the full live-tunable policy set.
type RateConfig struct {
	Default RateOverride            `json:"default"`
	Routes  map[string]RateOverride `json:"routes"`
	IP      map[string]RateOverride `json:"ip"`
}

// Resolve merges the config layers for one (route, ip) pair. Precedence is
// ip over route over default, field by field.
func (c RateConfig) Resolve(route, ip string) RateRule {
	rule := baseRule
	c.Default.apply(&rule)
	if o, ok := c.Routes[route]; ok {
		o.apply(&rule)
	}
	if o, ok := c.IP[ip]; ok {
		o.apply(&rule)
	}
	return rule
}

// BucketKey derives the store key for a (route, ip) pair. The route is
// hashed so arbitrary paths cannot grow unbounded key names.
func BucketKey(route, ip string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(route))
	return "tb:" + strconv.FormatUint(h.Sum64(), 10) + ":" + ip
}

// Lease is the outcome of one atomic admission check.
type Lease struct {
	Allowed   bool
	Remaining float64
}

// BucketStore performs atomic token-bucket admission against shared state.
// The read-refill-take sequence must execute as a single atomic unit per key;
// two concurrent calls for the same key may never observe the same
// pre-refill counter.
type BucketStore interface {
	Take(ctx context.Context, key string, rule RateRule, now time.Time) (Lease, error)
}

// Decision is the limiter's answer for one request.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
	Rule       RateRule
}

// StatsEvent records one admission decision for best-effort bookkeeping.
type StatsEvent struct {
	Key     string
	Route   string
	IP      string
	Allowed bool
	At      time.Time
}

// StatsStore persists admission statistics. Implementations are best-effort;
// a Record error must never fail the request being served.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
