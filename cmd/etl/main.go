package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/mqtt"
	"github.com/couchcryptid/weather-station-etl/internal/aggregator"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/pipeline"
	"github.com/couchcryptid/weather-station-etl/internal/sink"
)

// source is a live extractor the service can close on shutdown.
type source interface {
	pipeline.BatchExtractor
	Close() error
}

func main() {
	config.LoadDotEnv(slog.Default())
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver, err := domain.NewResolver(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	out, err := sink.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}

	var (
		src   source
		topic string
	)
	readiness := []sharedobs.ReadinessChecker{out}
	switch cfg.Source {
	case config.SourceMQTT:
		sub := mqttadapter.NewSubscriber(cfg, logger)
		if err := sub.Connect(ctx); err != nil {
			logger.Error("mqtt connect failed", "error", err)
			os.Exit(1)
		}
		src, topic = sub, cfg.MQTTTopic
		readiness = append(readiness, sub)
	default:
		src, topic = kafkaadapter.NewReader(cfg, logger), cfg.KafkaSourceTopic
	}

	reconciler := pipeline.NewReconciler(resolver, domain.DefaultOutlierConfig(), domain.LiveTags(topic, cfg.HostTag), cfg.Measurement, logger, metrics)
	p := pipeline.New(src, reconciler, out, logger, metrics, cfg.BatchSize)
	readiness = append(readiness, p)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(readiness...), logger)

	var scheduler *aggregator.Scheduler
	if store, ok := sink.SeriesStore(out); ok && cfg.AggregatorEnabled {
		job := aggregator.NewJob(store, cfg.Measurement, resolver.Location(), false, logger, metrics)
		srv.HandleDailyReconcile(job, resolver.Location())
		scheduler, err = aggregator.NewScheduler(cfg.AggregatorSchedule, resolver.Location(), job, logger)
		if err != nil {
			logger.Error("failed to schedule daily aggregator", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	} else if cfg.AggregatorEnabled {
		logger.Warn("daily aggregator disabled: sink does not store series", "sink", cfg.Sink)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start live pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	waitForPipeline(shutdownCtx, done, logger)
	if err := src.Close(); err != nil {
		logger.Error("source close error", "error", err)
	}
	if err := out.Close(); err != nil {
		logger.Error("sink close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// waitForPipeline lets an in-flight batch finish writing before the sink is
// closed.
func waitForPipeline(ctx context.Context, done <-chan struct{}, logger *slog.Logger) {
	start := time.Now()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout", "waited", time.Since(start))
	}
}
