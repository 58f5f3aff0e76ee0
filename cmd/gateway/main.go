package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/media-pirate/internal/auth"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/gateway"
	"github.com/baechuer/media-pirate/internal/health"
	"github.com/baechuer/media-pirate/internal/logger"
	"github.com/baechuer/media-pirate/internal/messaging/rabbitmq"
	"github.com/baechuer/media-pirate/internal/metrics"
	"github.com/baechuer/media-pirate/internal/ratelimit"
)

func main() {
	logger.Init("gateway")
	log := logger.Logger

	cfg, err := config.Load("gateway")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Msg("starting gateway")

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

	// The platform SDK adapter plugs in here; until one is configured the
	// gateway runs with the dry-run client and an idle update stream.
	chatClient := chat.NewDryRun(log)
	var source chat.Source = chat.IdleSource{}

	deps := &gateway.Deps{
		Cfg:     cfg,
		Log:     log,
		Redis:   rdb,
		Bus:     container,
		Auth:    auth.NewAuthenticator(rdb, cfg.AdminUserID, cfg.GraceTTL),
		Limiter: ratelimit.NewFixedWindow(rdb, cfg.RateLimitWindow, cfg.RateLimitMax),
		Chat:    chatClient,
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}

	rt := router.New[*gateway.Deps](log)
	if err := gateway.Routes(rt); err != nil {
		log.Fatal().Err(err).Msg("failed to declare routes")
	}

	cons := rabbitmq.NewConsumer(container, cfg.GatewayQueue, rt, deps, cfg.Prefetch, cfg.ConsumeTag, log).
		WithMetrics(met)
	go func() {
		if err := cons.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer error")
		}
	}()

	ingress := &gateway.Ingress{Deps: deps, Source: source}
	go func() {
		if err := ingress.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("ingress error")
		}
	}()

	hs := health.NewServer(cfg.HealthAddr, "gateway", reg, log)
	hs.Start()

	log.Info().Msg("gateway started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down gateway")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer shutdownCancel()
	if err := hs.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
}
