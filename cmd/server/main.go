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
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/github"
	"github.com/digestwatch/digestwatch/internal/metrics"
	"github.com/digestwatch/digestwatch/internal/store"
	"github.com/digestwatch/digestwatch/internal/web"
	"github.com/digestwatch/digestwatch/internal/ws"
)

const wsBroadcastInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the digests config file; omit to take owner/repo args")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	token, err := config.Token()
	if err != nil {
		slog.Error("missing upstream token", "err", err)
		os.Exit(1)
	}

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromArgs(flag.Args())
	}
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("digestwatch starting",
		"port", cfg.Server.Port,
		"digests", len(cfg.Digests),
		"lookback", cfg.Cache.Lookback.Std(config.DefaultLookback),
		"refresh_after", cfg.Cache.RefreshAfter.Std(config.DefaultRefreshAfter),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector()
	fetcher := github.New(token)
	registry := store.NewRegistry(cfg, fetcher, collector)

	// Hot reload: swap the digest set when the config file changes.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, registry.Reload); err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	// WebSocket hub — pushes digest summaries to open pages.
	hub := ws.New(registry, wsBroadcastInterval)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", web.New(registry, github.LastRateLimit))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", metrics.Handler(collector, registry.Count, github.LastRateLimit))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("digestwatch shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}
