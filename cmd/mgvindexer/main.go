package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"MgvIndexer/internal/config"
	"MgvIndexer/internal/consumer"
	"MgvIndexer/internal/ingestion"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/observability"
	"MgvIndexer/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", envOrDefault("MGV_CONFIG", "config.yaml"), "path to config file")
	migrationsDir := flag.String("migrations", envOrDefault("MGV_MIGRATIONS_DIR", "migrations"), "path to migrations directory")
	flag.Parse()

	log := observability.NewLogger("main")
	log.Info().Msg("mgvindexer starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := postgres.NewMigrator(db, *migrationsDir, observability.NewLogger("migrate"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	st := postgres.New(db, model.Tables())

	// --- NATS ---
	nc, js, err := ingestion.Connect(cfg.NATS.URL, observability.NewLogger("nats"))
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")

	// --- Metrics and health probes ---
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	health := observability.NewHealthChecker()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	sub := ingestion.NewSubscriber(js, observability.NewLogger("ingestion"), metrics,
		cfg.Consumer.BatchSize, cfg.Consumer.FetchMaxWait)

	var wg sync.WaitGroup
	runStream := func(streamCfg config.StreamConfig, streamID string, c *consumer.Coordinator) {
		if streamCfg.Subject == "" {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sub.Run(ctx, ingestion.StreamConfig{
				Stream:        streamID,
				JetStreamName: streamCfg.JetStreamName,
				Subject:       streamCfg.Subject,
				Durable:       streamCfg.Durable,
			}, c.HandleBatch)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("stream", streamID).Msg("stream stopped")
				cancel()
			}
		}()
	}

	consumerLog := observability.NewLogger("consumer")
	for _, ch := range cfg.Chains {
		chain := model.ChainID(ch.ID)
		watermark := consumer.NewWatermark()

		runStream(ch.Streams.Core, streamID("core", ch.ID), consumer.NewCoordinator(
			st, consumer.NewCoreDispatcher(chain, streamID("core", ch.ID)),
			consumerLog, metrics, cfg.Consumer.BatchTimeout,
			consumer.WithWatermark(watermark)))

		runStream(ch.Streams.Strategy, streamID("strategy", ch.ID), consumer.NewCoordinator(
			st, consumer.NewStrategyDispatcher(chain, streamID("strategy", ch.ID), ch.ExcludeMangroves),
			consumerLog, metrics, cfg.Consumer.BatchTimeout))

		runStream(ch.Streams.Kandel, streamID("kandel", ch.ID), consumer.NewCoordinator(
			st, consumer.NewKandelDispatcher(chain, streamID("kandel", ch.ID)),
			consumerLog, metrics, cfg.Consumer.BatchTimeout,
			consumer.WithBarrier(consumer.NewBarrier(st, chain, watermark, cfg.Consumer.BarrierPoll, consumerLog))))

		runStream(ch.Streams.Tokens, streamID("tokens", ch.ID), consumer.NewCoordinator(
			st, consumer.NewTokenDispatcher(chain, ch.Name, streamID("tokens", ch.ID)),
			consumerLog, metrics, cfg.Consumer.BatchTimeout))

		log.Info().Int("chain", ch.ID).Str("name", ch.Name).Msg("chain wired")
	}
	health.SetReady(true)

	<-ctx.Done()
	health.SetReady(false)
	log.Info().Msg("shutting down")
	waitWithTimeout(&wg, 30*time.Second, log)
	log.Info().Msg("stopped")
}

func streamID(kind string, chainID int) string {
	return fmt.Sprintf("%s-%d", kind, chainID)
}

func waitWithTimeout(wg *sync.WaitGroup, d time.Duration, log zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		log.Warn().Msg("shutdown timed out, exiting anyway")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
