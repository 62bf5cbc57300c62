package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_dir", cfg.Search.IndexDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m.Handler())
		defer shutdownMetrics(context.Background())
	}

	var synonyms index.Synonyms
	if cfg.Indexer.SynonymsPath != "" {
		synonyms, err = index.LoadSynonyms(cfg.Indexer.SynonymsPath)
		if err != nil {
			slog.Error("failed to load synonyms", "path", cfg.Indexer.SynonymsPath, "error", err)
			os.Exit(1)
		}
	}

	var saver *results.Saver
	if cfg.Search.SaveResults {
		saver = results.NewSaver(cfg.Search.ResultsDir, cfg.Search.SaveBuffer, cfg.Search.SaveTimeout).WithObserver(m)
		saver.Start()
		defer saver.Close()
		slog.Info("result saving enabled", "dir", cfg.Search.ResultsDir)
	}

	eng := engine.New(engine.Options{
		IndexDir:   cfg.Search.IndexDir,
		Params:     ranker.ParamsFromConfig(cfg.Search.Ranking),
		Synonyms:   synonyms,
		MaxResults: cfg.Search.MaxResults,
		Saver:      saver,
		Tracer:     tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate),
		Observer:   m,
	})
	if snap, err := eng.Reload(ctx); err != nil {
		m.ObserveReload(0, err)
		slog.Warn("no index loaded, searches return 503 until a build is published", "error", err)
	} else {
		m.ObserveReload(len(snap.Set.Documents), nil)
		slog.Info("index loaded", "version", snap.Version, "documents", len(snap.Set.Documents))
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
		m.ObserveBreaker(queryCache.Breaker())
		queryCache.Breaker().OnChange(m.ObserveBreakerTransition)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, cfg.Search.AnalyticsBuffer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)
	defer collector.Close()
	aggregator := analytics.NewAggregator(cfg.Analytics.LatencySamples)
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	h := handler.New(eng, handler.Options{
		Cache:        queryCache,
		Tracker:      analytics.Trackers{collector, aggregator},
		Observer:     m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})

	indexConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, h.HandleIndexComplete)
	defer indexConsumer.Close()
	go func() {
		if err := indexConsumer.Start(ctx); err != nil {
			slog.Error("index-complete consumer error", "error", err)
		}
	}()

	if queryCache != nil {
		invalidateConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, h.HandleCacheInvalidate)
		defer invalidateConsumer.Close()
		go func() {
			if err := invalidateConsumer.Start(ctx); err != nil {
				slog.Error("cache-invalidate consumer error", "error", err)
			}
		}()
	}

	var rpcServer *grpc.Server
	if cfg.Search.RPCPort > 0 {
		rpcServer = grpc.NewServer()
		h.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.ListenAndServe(fmt.Sprintf(":%d", cfg.Search.RPCPort)); err != nil && !errors.Is(err, grpc.ErrServerClosed) {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := eng.Snapshot()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("version %s, %d documents", snap.Version, len(snap.Set.Documents)),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, false)(ctx)
	})

	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
	}
	if cfg.RateLimit.RequestsPerWindow > 0 {
		limiter := ratelimit.New(ctx, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws,
		middleware.CORS(middleware.DefaultCORSConfig()),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if rpcServer != nil {
			rpcServer.Stop()
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

