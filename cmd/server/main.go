// Medley Server
//
// Features:
// - Virtual media tree over local folders and podcast feeds
// - Range-capable content streaming
// - Prometheus metrics & structured logging (zap)
// - Filesystem watching with automatic index sweeps
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medley-server/medley/internal/browse"
	"github.com/medley-server/medley/internal/config"
	"github.com/medley-server/medley/internal/logging"
	"github.com/medley-server/medley/internal/media/index"
	"github.com/medley-server/medley/internal/media/podcast"
	"github.com/medley-server/medley/internal/metrics"
	"github.com/medley-server/medley/internal/server"
	"github.com/medley-server/medley/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Medley Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := index.New()
	cache := podcast.NewCache(cfg.PodcastCacheMaxElements, cfg.PodcastTTL())
	fetcher := podcast.NewFetcher(cfg.FeedTimeout())
	svc := browse.New(cfg, idx, cache, fetcher)

	// Watch the configured folders so deleted files leave the index
	// promptly instead of waiting for the next periodic sweep.
	if roots := cfg.LocalRoots(); len(roots) > 0 {
		fw, err := watcher.New(roots, 2*time.Second, svc.CleanUpCache)
		if err != nil {
			logging.Warn("filesystem watcher unavailable", zap.Error(err))
		} else {
			defer fw.Close()
			logging.Info("filesystem watcher started", zap.Int("roots", len(roots)))
		}
	}

	srv := server.New(cfg, svc)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Periodic cache expiry and index sweep
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.CleanUpCache()
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
