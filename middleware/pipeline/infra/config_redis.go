package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline/domain"
)

// mixDoc is the wire shape of the Mix document: misc app config, the auth
// allow-list and (optionally) an embedded rate config. WhiteList is a
// pointer so an explicit empty list (auth on every path) is distinguishable
// from an absent field.
type mixDoc struct {
	App        map[string]json.RawMessage `json:"app"`
	WhiteList  *[]string                  `json:"white_list"`
	RateConfig *domain.RateConfig         `json:"rate_config"`
}

// RedisConfigProvider reads the live-tunable policy documents on every
// snapshot, so operators can retune rate rules and the allow-list without a
// gateway restart. Missing documents fall back to the built-in defaults; a
// document that fails to parse is logged and ignored rather than taking the
// gateway down.
type RedisConfigProvider struct {
	rdb     redis.UniversalClient
	rateKey string
	mixKey  string
}

type ConfigOption func(*RedisConfigProvider)

func WithRateKey(key string) ConfigOption {
	return func(p *RedisConfigProvider) { p.rateKey = key }
}

func WithMixKey(key string) ConfigOption {
	return func(p *RedisConfigProvider) { p.mixKey = key }
}

func NewRedisConfigProvider(rdb redis.UniversalClient, opts ...ConfigOption) *RedisConfigProvider {
	p := &RedisConfigProvider{
		rdb:     rdb,
		rateKey: domain.RateConfigKey,
		mixKey:  domain.MixKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot implements domain.ConfigProvider. The dedicated RateConfig
// document wins over a rate_config embedded in Mix.
func (p *RedisConfigProvider) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	vals, err := p.rdb.MGet(ctx, p.rateKey, p.mixKey).Result()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("config fetch: %w", err)
	}

	snap := domain.DefaultSnapshot()

	if raw, ok := vals[1].(string); ok {
		var mix mixDoc
		if err := json.Unmarshal([]byte(raw), &mix); err != nil {
			log.Logger().Error("mix document is not valid JSON", zap.String("key", p.mixKey), zap.Error(err))
		} else {
			if mix.WhiteList != nil {
				snap.Allow = domain.NewAllowList(*mix.WhiteList...)
			}
			if mix.App != nil {
				snap.App = mix.App
			}
			if mix.RateConfig != nil {
				snap.Rates = *mix.RateConfig
			}
		}
	}

	if raw, ok := vals[0].(string); ok {
		var rc domain.RateConfig
		if err := json.Unmarshal([]byte(raw), &rc); err != nil {
			log.Logger().Error("rate config document is not valid JSON", zap.String("key", p.rateKey), zap.Error(err))
		} else {
			snap.Rates = rc
		}
	}

	return snap, nil
}

// StaticConfigProvider serves one fixed snapshot. Used when the gateway runs
// without a shared store, and in tests.
type StaticConfigProvider struct {
	Snap domain.Snapshot
}

func (p StaticConfigProvider) Snapshot(context.Context) (domain.Snapshot, error) {
	return p.Snap, nil
}
