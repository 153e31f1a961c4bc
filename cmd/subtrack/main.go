package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"subtrack-bot/internal/cache"
	"subtrack-bot/internal/chat"
	"subtrack-bot/internal/config"
	"subtrack-bot/internal/convo"
	"subtrack-bot/internal/currency"
	"subtrack-bot/internal/fx"
	"subtrack-bot/internal/httpapi"
	"subtrack-bot/internal/logging"
	"subtrack-bot/internal/metrics"
	"subtrack-bot/internal/nlu"
	"subtrack-bot/internal/repo"
	"subtrack-bot/internal/snapshot"
	"subtrack-bot/internal/wa"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed loading config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting subtrack bot", "env", cfg.AppEnv, "addr", cfg.HTTPListenAddr, "storage", cfg.StorageBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	redis := cache.New(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	money := currency.NewFormatter(cfg.DisplayCurrency)
	fxClient := fx.New(fx.Config{
		BaseURL:  cfg.FXBaseURL,
		Timeout:  cfg.FXTimeout,
		CacheTTL: cfg.FXCacheTTL,
	}, logger, m, redis)
	snaps := snapshot.New(store, fxClient, redis, snapshot.Config{
		DisplayCurrency: cfg.DisplayCurrency,
		CacheTTL:        cfg.SnapshotTTL,
	}, logger)

	gazetteer := nlu.DefaultGazetteer().With(cfg.KnownServices...)
	engine := convo.New(nlu.NewInterpreter(gazetteer), money, cfg.DisplayCurrency, m, logger)

	sessions := chat.NewManager(engine, snaps, chat.Options{
		ReplyDelay: cfg.ReplyDelay,
		Store: chat.MultiStore{
			cache.NewTranscriptStore(redis, cfg.TranscriptTTL, 0),
			repo.NewTranscriptLog(store, 0),
		},
		Limiter:    redis,
		RateLimit:  cfg.RateLimitPerMinute,
		RateWindow: time.Minute,
		Metrics:    m,
		Logger:     logger,
	})
	defer sessions.CloseAll()

	if cfg.WhatsAppEnabled {
		client, err := wa.Open(ctx, cfg.WhatsAppStorePath, cfg.WhatsAppLogLevel, logger)
		if err != nil {
			return fmt.Errorf("open whatsapp: %w", err)
		}
		defer client.Close()
		bridge := wa.NewBridge(ctx, sessions, client, money, m, logger)
		if err := client.Start(ctx, bridge); err != nil {
			return fmt.Errorf("start whatsapp: %w", err)
		}
	}

	api := httpapi.New(httpapi.Deps{
		Engine:    engine,
		Sessions:  sessions,
		Snapshots: snaps,
		Store:     store,
		Metrics:   m,
		Gatherer:  prometheus.DefaultGatherer,
		Health:    redis.Ping,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured repository and its cleanup func.
func openStore(ctx context.Context, cfg *config.Config) (repo.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		store, err := repo.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		pool, err := repo.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo.New(pool), pool.Close, nil
	}
}
