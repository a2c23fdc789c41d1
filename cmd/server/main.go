package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docresolve/internal/api"
	"github.com/dgallion1/docresolve/internal/app"
	"github.com/dgallion1/docresolve/internal/config"
	"github.com/dgallion1/docresolve/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log, logCloser := app.NewLogger(cfg, os.Stdout)
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize loader, block cache and engine.
	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := rt.Watch(ctx); err != nil {
			log.Error("content watcher stopped", "error", err)
		}
	}()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, rt.Engine, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	var cache api.BlockCache
	if rt.Cache != nil {
		cache = rt.Cache
	}
	var blocks api.BlockLister
	if rt.FS != nil {
		blocks = rt.FS
	}
	srv := api.NewServer(orch, cache, blocks, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if err := rt.Close(); err != nil {
			log.Warn("close runtime", "error", err)
		}
	}()

	log.Info("starting docresolve",
		"port", cfg.Port,
		"loader", cfg.Loader,
		"cache", cfg.CacheBackend,
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
