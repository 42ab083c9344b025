package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/analytics"
	"github.com/adcasthq/adcast/internal/api"
	"github.com/adcasthq/adcast/internal/config"
	"github.com/adcasthq/adcast/internal/db"
	"github.com/adcasthq/adcast/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.OTLPEndpoint, cfg.TracingSampleRate)
		if err != nil {
			logger.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdown()
		}
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	// Redis and ClickHouse are optional: the engine serves without the
	// rate cache and without analytics.
	var redisStore *db.RedisStore
	if rs, err := db.InitRedis(cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, rate card caching disabled", zap.Error(err))
	} else {
		redisStore = rs
	}

	// A nil Analytics reports ErrUnavailable from every call, which the
	// handlers ignore.
	var analyticsSvc analytics.AnalyticsService = (*analytics.Analytics)(nil)
	if an, err := analytics.InitClickHouse(cfg.ClickHouseDSN); err != nil {
		logger.Warn("clickhouse unavailable, allocation analytics disabled", zap.Error(err))
	} else {
		analyticsSvc = an
	}

	observability.Register()
	metrics := observability.NewPrometheusRegistry()

	store := db.NewStore(pg, redisStore, cfg.RateCacheTTL, logger)
	server := api.NewServer(logger, store, pg, redisStore, analyticsSvc, metrics, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
