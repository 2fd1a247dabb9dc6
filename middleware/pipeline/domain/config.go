package domain

import (
	"context"
	"encoding/json"
)

// Store keys of the two hot-reloadable config documents.
const (
	RateConfigKey = "RateConfig"
	MixKey        = "Mix"
)

// AllowList is the set of request paths exempt from authentication.
type AllowList map[string]struct{}

func NewAllowList(paths ...string) AllowList {
	a := make(AllowList, len(paths))
	for _, p := range paths {
		a[p] = struct{}{}
	}
	return a
}

func (a AllowList) Contains(path string) bool {
	_, ok := a[path]
	return ok
}

// Snapshot is one consistent view of the live config, resolved per request.
type Snapshot struct {
	Rates RateConfig
	Allow AllowList
	App   map[string]json.RawMessage
}

// ConfigProvider yields the current config snapshot. Implementations fall
// back to DefaultSnapshot when the backing store holds no documents, and
// return an error only when the store itself is unreachable.
type ConfigProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// DefaultSnapshot is the built-in config used when the store has no value.
func DefaultSnapshot() Snapshot {
	slow := RateOverride{Burst: intp(2), Rate: floatp(0.2)}
	return Snapshot{
		Allow: NewAllowList("/", "/status"),
		Rates: RateConfig{
			Default: RateOverride{Burst: intp(10), Rate: floatp(2), MaxWait: floatp(1)},
			Routes: map[string]RateOverride{
				"/service":   slow,
				"/tensor/en": slow,
				"/tensor/zh": slow,
				"/predict":   slow,
				"/rerank":    slow,
			},
			IP: map[string]RateOverride{},
		},
	}
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
