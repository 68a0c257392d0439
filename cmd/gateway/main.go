package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/internal/config"
	"admission-gateway/internal/logger"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		logger.Fatal("gateway stopped", "error", err)
	}
}

// run só retorna depois que os defers liberaram redis e sinais; main decide o exit code.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Init(cfg.Log)

	if cfg.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxyLog := logger.WithComponent("proxy")
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		proxyLog.Error("proxy error", "error", err, "path", r.URL.Path)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var stats domain.StatsStore
	if cfg.Stats.Enabled {
		rdb, err := connectRedis(ctx, cfg.Stats)
		if err != nil {
			return fmt.Errorf("redis stats: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	}

	h := http.Handler(proxy)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Concurrency.Timeout,
		KeyFn:          admission.DefaultKeyFunc(cfg.Admission.KeyHeader, cfg.Admission.TrustXFF),
		Logger:         logger.WithComponent("concurrency"),
	})(h)
	if cfg.Admission.Enabled {
		// o mesmo relógio alimenta Check (via Options.Now) e o janitor
		clock := time.Now
		tracker := infra.NewTracker(
			cfg.Admission.Tracker(),
			infra.WithShards(cfg.Admission.Shards),
			infra.WithCleanupEvery(cfg.Admission.CleanupEvery),
			infra.WithClock(clock),
		)
		tracker.StartJanitor(ctx)

		admissionLog := logger.WithComponent("admission")
		h = admission.Middleware(admission.Options{
			Pipeline: application.Pipeline{
				Tracker: tracker,
				Classifier: infra.NewUserAgentClassifier(
					infra.WithClassifierLogger(admissionLog),
					infra.WithLogInterval(cfg.Admission.LogInterval),
				),
			},
			Stats:              stats,
			KeyHeader:          cfg.Admission.KeyHeader,
			TrustXForwardedFor: cfg.Admission.TrustXFF,
			AddHeaders:         cfg.Admission.AddHeaders,
			Now:                clock,
			Logger:             admissionLog,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway listening", "addr", cfg.ListenAddr, "upstream", target.String())
	slog.Info("admission",
		"enabled", cfg.Admission.Enabled,
		"threshold", cfg.Admission.Threshold,
		"window", cfg.Admission.Window,
		"shards", cfg.Admission.Shards,
		"keyHeader", cfg.Admission.KeyHeader,
		"trustXFF", cfg.Admission.TrustXFF,
	)
	slog.Info("admission stats", "enabled", cfg.Stats.Enabled, "redisAddr", cfg.Stats.RedisAddr, "bucket", cfg.Stats.Bucket, "ttl", cfg.Stats.TTL)
	slog.Info("concurrency", "max", cfg.Concurrency.Max, "acquireTimeout", cfg.Concurrency.Timeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func connectRedis(ctx context.Context, cfg config.StatsConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}
