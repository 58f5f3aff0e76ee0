package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/health"
	"github.com/baechuer/media-pirate/internal/logger"
	"github.com/baechuer/media-pirate/internal/messaging/rabbitmq"
	"github.com/baechuer/media-pirate/internal/metrics"
	"github.com/baechuer/media-pirate/internal/quartermaster"
)

func main() {
	logger.Init("quartermaster")
	log := logger.Logger

	cfg, err := config.Load("quartermaster")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Info().Msg("starting quartermaster")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	container := rabbitmq.NewContainer(cfg.RabbitURL, cfg.DurableQueues, met, log)
	if err := container.Connect(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer container.Close()

	deps := &quartermaster.Deps{Cfg: cfg, Log: log}

	rt := router.New[*quartermaster.Deps](log)
	if err := quartermaster.Routes(rt); err != nil {
		log.Fatal().Err(err).Msg("failed to declare routes")
	}

	cons := rabbitmq.NewConsumer(container, cfg.QuarterQueue, rt, deps, cfg.Prefetch, cfg.ConsumeTag, log).
		WithMetrics(met)
	go func() {
		if err := cons.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer error")
		}
	}()

	hs := health.NewServer(cfg.HealthAddr, "quartermaster", reg, log)
	hs.Start()

	log.Info().Msg("quartermaster started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down quartermaster")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer shutdownCancel()
	if err := hs.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
}
