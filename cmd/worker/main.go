package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/promptlibrary/internal/app"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/queue"
	"github.com/nikhilbhutani/promptlibrary/internal/queue/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := app.SetupLogger(cfg.Log)

	if cfg.Store.Backend == "memory" {
		slog.Error("the worker needs a store shared with the API server", "backend", cfg.Store.Backend)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Logger:      slogAdapter{logger},
		},
	)

	registry := queue.NewHandlersRegistry()
	workers.NewPromptWorker(a.Library).Register(registry)

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency, "backend", cfg.Store.Backend)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

// slogAdapter routes asynq's own logging through slog.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(args ...any) { a.l.Debug(sprint(args)) }
func (a slogAdapter) Info(args ...any)  { a.l.Info(sprint(args)) }
func (a slogAdapter) Warn(args ...any)  { a.l.Warn(sprint(args)) }
func (a slogAdapter) Error(args ...any) { a.l.Error(sprint(args)) }
func (a slogAdapter) Fatal(args ...any) {
	a.l.Error(sprint(args))
	os.Exit(1)
}

func sprint(args []any) string { return strings.TrimSpace(fmt.Sprint(args...)) }
