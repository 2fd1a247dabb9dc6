package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"model-gateway/log"
	"model-gateway/middleware/pipeline"
	"model-gateway/middleware/pipeline/application"
	"model-gateway/middleware/pipeline/domain"
	"model-gateway/middleware/pipeline/infra"
	"model-gateway/routes"
	"model-gateway/upstream"
)

func main() {
	logger := log.Logger()
	defer func() { _ = logger.Sync() }()

	cfg, err := readConfig()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Username: cfg.redisUsername,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			logger.Fatal("redis ping error", zap.Error(err))
		}
	}

	var provider domain.ConfigProvider
	var buckets domain.BucketStore
	switch cfg.rateStore {
	case "redis":
		provider = infra.NewRedisConfigProvider(rdb)
		buckets = infra.NewRedisBucketStore(rdb)
	case "local":
		provider = infra.StaticConfigProvider{Snap: domain.DefaultSnapshot()}
		local := infra.NewLocalBucketStore()
		local.StartJanitor(ctx)
		buckets = local
	}

	var stats domain.StatsStore
	switch cfg.statsStore {
	case "redis":
		stats = infra.NewRedisStatsStore(rdb, infra.WithStatsTrackKeys(cfg.statsTrackKeys))
	case "memory":
		stats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
	}

	invoker := upstream.NewHTTPInvoker(cfg.upstreamURL, upstream.WithTimeout(cfg.upstreamTimeout))
	router := routes.NewRouter(invoker)

	admission := application.AdmissionService{Buckets: buckets, Config: provider, Stats: stats}
	auth := application.AuthService{Config: provider, Secret: []byte(cfg.sharedSecret)}

	h := pipeline.Chain(router.Handle,
		pipeline.Concurrency(pipeline.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			AcquireTimeout: cfg.concurrencyTimeout,
		}),
		pipeline.RateLimit(admission),
		pipeline.Auth(auth),
		pipeline.Access(cfg.slowThreshold),
	)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           pipeline.Boundary(h),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", cfg.upstreamURL),
		zap.String("rate_store", cfg.rateStore),
		zap.String("stats_store", cfg.statsStore),
		zap.Int("concurrency_max", cfg.concurrencyMax),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

type config struct {
	listenAddr      string
	upstreamURL     string
	upstreamTimeout time.Duration
	sharedSecret    string

	redisAddr     string
	redisUsername string
	redisPassword string
	redisDB       int

	rateStore      string // "redis" or "local"
	statsStore     string // "off", "memory" or "redis"
	statsTrackKeys bool

	slowThreshold      time.Duration
	concurrencyMax     int
	concurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.upstreamTimeout = getenvDurationDefault("UPSTREAM_TIMEOUT", 30*time.Second)
	cfg.sharedSecret = os.Getenv("SHARED_SECRET")

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisUsername = getenvDefault("REDIS_USERNAME", "default")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	defStore := "local"
	if cfg.redisAddr != "" {
		defStore = "redis"
	}
	cfg.rateStore = strings.ToLower(getenvDefault("RATE_STORE", defStore))
	cfg.statsStore = strings.ToLower(getenvDefault("RATE_STATS", "off"))
	cfg.statsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.slowThreshold = getenvDurationDefault("SLOW_THRESHOLD", pipeline.DefaultSlowThreshold)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.sharedSecret == "" {
		return config{}, errors.New("SHARED_SECRET is required")
	}
	switch cfg.rateStore {
	case "redis":
		if cfg.redisAddr == "" {
			return config{}, errors.New("REDIS_ADDR is required when RATE_STORE=redis")
		}
	case "local":
	default:
		return config{}, errors.New("RATE_STORE must be redis or local")
	}
	switch cfg.statsStore {
	case "off", "memory":
	case "redis":
		if cfg.redisAddr == "" {
			return config{}, errors.New("REDIS_ADDR is required when RATE_STATS=redis")
		}
	default:
		return config{}, errors.New("RATE_STATS must be off, memory or redis")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
