package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/internal/config"
	"admission-gateway/internal/logger"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/infra"

	"github.com/gin-gonic/gin"
)

// Exemplo: filtro de admissão injetado direto numa aplicação gin (sem proxy).
func main() {
	if err := run(); err != nil {
		logger.Fatal("example server stopped", "error", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Init(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := time.Now
	tracker := infra.NewTracker(
		cfg.Admission.Tracker(),
		infra.WithShards(cfg.Admission.Shards),
		infra.WithCleanupEvery(cfg.Admission.CleanupEvery),
		infra.WithClock(clock),
	)
	tracker.StartJanitor(ctx)

	admissionLog := logger.WithComponent("admission")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(admission.GinConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.Timeout,
		Logger:         logger.WithComponent("concurrency"),
	}))
	router.Use(admission.GinMiddleware(admission.Options{
		Pipeline: application.Pipeline{
			Tracker:    tracker,
			Classifier: infra.NewUserAgentClassifier(infra.WithClassifierLogger(admissionLog)),
		},
		AddHeaders: true,
		Now:        clock,
		Logger:     admissionLog,
	}))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello World")
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("example server listening", "addr", cfg.ListenAddr, "threshold", tracker.Threshold(), "window", tracker.Window())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
