package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/pagination"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/sphinx"
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
	slog.Info("starting searchd gateway", "port", cfg.Server.Port, "sphinx", fmt.Sprintf("%s:%d", cfg.Sphinx.Host, cfg.Sphinx.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	sphinxClient, err := sphinx.New(cfg.Sphinx)
	if err != nil {
		slog.Error("failed to connect to searchd", "error", err)
		os.Exit(1)
	}
	defer sphinxClient.Close()

	checker := health.NewChecker()
	var breaker health.Breaker

	execOpts := []executor.Option{executor.WithMetrics(m)}
	if cfg.Breaker.Enabled {
		cb := resilience.NewCircuitBreaker("searchd", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
			OnStateChange: func(name string, state resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
			},
		})
		execOpts = append(execOpts, executor.WithBreaker(cb))
		breaker = cb
	}
	checker.Register("searchd", health.SearchdCheck(sphinxClient.Ping, breaker))
	exec := executor.New(executor.SQLBackend(sphinxClient), execOpts...)

	var searcher pagination.Searcher = exec
	var handlerOpts []handler.Option

	if cfg.Snippet.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg.Ping, true))

		source := snippet.PostgresSource(pg.DB, snippet.SourceConfig{
			Table:       cfg.Snippet.Table,
			IDColumn:    cfg.Snippet.IDColumn,
			HitIDColumn: cfg.Snippet.HitIDColumn,
			Fields:      cfg.Snippet.Fields,
		})
		handlerOpts = append(handlerOpts, handler.WithSnippets(source, query.SnippetOptions{
			BeforeMatch: cfg.Snippet.BeforeMatch,
			AfterMatch:  cfg.Snippet.AfterMatch,
			Limit:       cfg.Snippet.Limit,
			Around:      cfg.Snippet.Around,
		}))
		slog.Info("snippets enabled", "table", cfg.Snippet.Table, "fields", cfg.Snippet.Fields)
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(exec, redisClient, cfg.Redis.CacheTTL, m)
			searcher = queryCache
			handlerOpts = append(handlerOpts, handler.WithCache(queryCache))
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 0)
		collector.Start(ctx)
		defer collector.Close()
		handlerOpts = append(handlerOpts, handler.WithCollector(collector))

		if queryCache != nil {
			rotations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexRotated,
				kafka.OnIndexRotated(func(ctx context.Context, ev kafka.IndexRotated) error {
					slog.Info("index rotated, dropping cached results", "index", ev.Index)
					return queryCache.Invalidate(ctx)
				}))
			go func() {
				if err := rotations.Start(ctx); err != nil {
					slog.Error("index rotation consumer error", "error", err)
				}
			}()
		}
		slog.Info("kafka enabled", "analytics_topic", cfg.Kafka.Topics.AnalyticsEvents, "rotation_topic", cfg.Kafka.Topics.IndexRotated)
	}

	h := handler.New(searcher, cfg.Search, handlerOpts...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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
	}()

	slog.Info("searchd gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("searchd gateway stopped")
}
