// Command portcullis serves the authorization engine and its administration
// API as a Forge application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"

	"github.com/xraph/portcullis/cache"
	"github.com/xraph/portcullis/extension"
	"github.com/xraph/portcullis/plugin/metrics"
	"github.com/xraph/portcullis/store/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := Load(os.Getenv("PORTCULLIS_CONFIG"), "portcullis.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []extension.ExtOption{
		extension.WithConfig(cfg.Extension()),
		extension.WithStore(memory.New()),
		extension.WithLogger(logger),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, decisions will not be cached until it recovers", "error", err)
		}
		opts = append(opts, extension.WithCache(cache.NewRedis(client,
			cache.WithRedisTTL(cfg.Engine.CacheTTL),
			cache.WithPrefix(cfg.Redis.Prefix),
			cache.WithRedisLogger(logger),
		)))
		logger.Info("shared decision cache enabled", "addr", cfg.Redis.Addr)
	}

	if cfg.Metrics.Enabled {
		p, err := metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		opts = append(opts, extension.WithPlugin(p))
		if cfg.Metrics.Addr != "" {
			go serveMetrics(ctx, cfg.Metrics.Addr, logger)
		}
	}

	logger.Info("portcullis starting",
		"version", extension.ExtensionVersion,
		"superuser_role", cfg.Engine.SuperuserRole,
		"audit", cfg.Audit.Enabled,
	)

	app := forge.New(forge.WithExtensions(extension.New(opts...)))
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
