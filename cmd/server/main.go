package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/wikirefs/internal/api"
	"github.com/dgallion1/wikirefs/internal/config"
	"github.com/dgallion1/wikirefs/internal/pagecache"
	"github.com/dgallion1/wikirefs/internal/pipeline"
	"github.com/dgallion1/wikirefs/internal/wiki"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client := wiki.NewClient(cfg.WikiAPIURL, cfg.WikiUserAgent, cfg.WikiTimeout)
	cache, closeCache, err := newPageCache(ctx, cfg)
	if err != nil {
		log.Error("page cache unavailable", "backend", cfg.PageCache, "error", err)
		os.Exit(1)
	}
	var fetcher wiki.Fetcher = client
	if cfg.PageCache != config.CacheNone {
		fetcher = wiki.NewCached(client, cache, cfg.PageCacheTTL, log)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, fetcher, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, client.Stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Drain HTTP first so no handler submits to a stopped orchestrator.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()

		client.Close()
		closeCache()
	}()

	log.Info("starting wikirefs", "port", cfg.Port, "wiki_api", cfg.WikiAPIURL, "page_cache", cfg.PageCache)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newPageCache(ctx context.Context, cfg config.Config) (pagecache.Cache, func(), error) {
	switch cfg.PageCache {
	case config.CacheRedis:
		r, err := pagecache.NewRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	case config.CacheMemory:
		return pagecache.NewLocalLRU(cfg.PageCacheSize), func() {}, nil
	default:
		return pagecache.Nop{}, func() {}, nil
	}
}
