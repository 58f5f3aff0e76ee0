package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/downloader"
	"github.com/baechuer/media-pirate/internal/health"
	"github.com/baechuer/media-pirate/internal/logger"
	"github.com/baechuer/media-pirate/internal/messaging/rabbitmq"
	"github.com/baechuer/media-pirate/internal/metrics"
	"github.com/baechuer/media-pirate/internal/ratelimit"
	"github.com/baechuer/media-pirate/internal/storage"
	"github.com/baechuer/media-pirate/internal/worker"
)

func main() {
	logger.Init("media-pirate")
	log := logger.Logger

	cfg, err := config.Load("media-pirate")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Msg("starting media-pirate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	container := rabbitmq.NewContainer(cfg.RabbitURL, cfg.DurableQueues, met, log)
	if err := container.Connect(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer container.Close()

	store, err := storage.NewClient(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bucket client")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure staging bucket")
	}

	deps := &worker.Deps{
		Cfg:        cfg,
		Log:        log,
		Redis:      rdb,
		Bus:        container,
		Limiter:    ratelimit.NewFixedWindow(rdb, cfg.RateLimitWindow, cfg.RateLimitMax),
		Store:      store,
		Downloader: downloader.NewYTDLP("", filepath.Join(os.TempDir(), "media-pirate"), log),
	}

	rt := router.New[*worker.Deps](log)
	if err := worker.Routes(rt); err != nil {
		log.Fatal().Err(err).Msg("failed to declare routes")
	}

	cons := rabbitmq.NewConsumer(container, cfg.TelegramQueue, rt, deps, cfg.Prefetch, cfg.ConsumeTag, log).
		WithMetrics(met)
	go func() {
		if err := cons.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer error")
		}
	}()

	hs := health.NewServer(cfg.HealthAddr, "media-pirate", reg, log)
	hs.Start()

	log.Info().Msg("media-pirate started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down media-pirate")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer shutdownCancel()
	if err := hs.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
}
