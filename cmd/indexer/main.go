// Command indexer builds the product index and publishes it to the index
// directory.
//
// By default it runs one build and exits. With -watch it stays up, consumes
// ingest events from Kafka and rebuilds once ingestion goes quiet, announcing
// each new build on the index-complete topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-watch]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	watch := flag.Bool("watch", false, "consume ingest events and rebuild continuously")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"source", cfg.Indexer.Source,
		"output_dir", cfg.Indexer.OutputDir,
		"workers", cfg.Indexer.Workers,
		"watch", *watch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var synonyms index.Synonyms
	if cfg.Indexer.SynonymsPath != "" {
		synonyms, err = index.LoadSynonyms(cfg.Indexer.SynonymsPath)
		if err != nil {
			slog.Error("failed to load synonyms", "path", cfg.Indexer.SynonymsPath, "error", err)
			os.Exit(1)
		}
	}

	var (
		source catalog.Source
		repo   *catalog.Repository
	)
	switch cfg.Indexer.Source {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		repo = catalog.NewRepository(db)
		source = repo
	default:
		source = catalog.FileSource{Path: cfg.Indexer.CorpusPath}
	}

	m := metrics.New()
	builder := indexer.NewBuilder(cfg.Indexer.Workers).WithObserver(m)
	pipeline := indexer.NewPipeline(source, builder, store.NewWriter(cfg.Indexer.OutputDir, cfg.Indexer.RetainBuilds), synonyms)

	if !*watch {
		res, err := pipeline.Run(ctx)
		if err != nil {
			slog.Error("index build failed", "error", err)
			os.Exit(1)
		}
		if repo != nil {
			if err := repo.MarkIndexed(ctx, res.URLs, res.LoadedAt); err != nil {
				slog.Error("failed to mark products indexed", "error", err)
			}
		}
		slog.Info("index build complete",
			"version", res.Manifest.Version,
			"documents", res.Manifest.Stats.Documents,
			"skipped", res.Load.Malformed+res.Load.MissingURL,
			"duration", res.Duration,
		)
		return
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m.Handler())
		defer shutdownMetrics(context.Background())
	}

	notifier := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer notifier.Close()
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 100, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)
	defer collector.Close()

	opts := consumer.Options{
		Rebuilder: pipeline,
		Notifier:  notifier,
		Tracker:   collector,
		Debounce:  cfg.Indexer.RebuildDebounce,
	}
	if repo != nil {
		opts.Marker = repo
	}
	ic := consumer.New(opts)

	// Rows ingested while the indexer was down still need a build.
	if repo != nil {
		if pending, err := repo.Pending(ctx); err != nil {
			slog.Warn("could not count pending products", "error", err)
		} else if pending > 0 {
			slog.Info("pending products found at startup", "count", pending)
			ic.Schedule(pending)
		}
	} else {
		ic.Schedule(0)
	}

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, ic.HandleMessage)
	defer kafkaConsumer.Close()
	go func() {
		if err := kafkaConsumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := ic.Run(ctx); err != nil {
		slog.Error("rebuild loop error", "error", err)
	}
	slog.Info("indexer service stopped")
}
