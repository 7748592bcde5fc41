package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/api"
	"github.com/nikhilbhutani/promptlibrary/internal/app"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.SetupLogger(cfg.Log)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	n, err := a.Library.Load(ctx)
	if err != nil {
		slog.Error("failed to load prompt collection", "error", err)
		os.Exit(1)
	}
	slog.Info("prompt collection loaded", "backend", cfg.Store.Backend, "prompts", n)

	deps := api.Deps{Library: a.Library, Models: a.Gateway, Checks: a.Checks()}
	if cfg.Queue.Enabled {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Queue = qc
	}

	router := api.NewRouter(cfg.Server, deps)
	handler := router.Setup()

	done := make(chan struct{})
	defer close(done)
	if rl := router.Limiter(); rl != nil {
		go rl.Cleanup(done)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // synchronous video runs
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "queue", cfg.Queue.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
