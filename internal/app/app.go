// Package app wires configuration into the services shared by the API
// server, the worker and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/promptlibrary/internal/api/handlers"
	"github.com/nikhilbhutani/promptlibrary/internal/cache"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/database"
	"github.com/nikhilbhutani/promptlibrary/internal/embedding"
	"github.com/nikhilbhutani/promptlibrary/internal/genai"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/llm"
	"github.com/nikhilbhutani/promptlibrary/internal/multimodal"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
	"github.com/nikhilbhutani/promptlibrary/migrations"
)

// minEmbeddingSimilarity drops search candidates that are barely related to
// the query when ranking by embeddings.
const minEmbeddingSimilarity = 0.3

// SetupLogger installs a JSON slog handler at the configured level.
func SetupLogger(cfg config.LogConfig) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// App holds the long-lived services built from configuration.
type App struct {
	Config  *config.Config
	Library *library.Library
	Gateway *llm.Gateway
	Store   storage.Store
	DB      *pgxpool.Pool
	Redis   *redis.Client

	closers []func()
}

// New connects the configured store backend, Redis and the LLM gateway and
// builds the library on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	if err := a.connectRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Gateway = llm.NewGateway(cfg.LLM)
	if !a.Gateway.Configured() {
		slog.Warn("no LLM provider configured, runs and evaluations will fail")
	}
	client := a.genaiClient()

	a.Library = library.New(store,
		library.WithCollaborators(library.Collaborators{
			Executor:    client,
			Evaluator:   client,
			Categorizer: client,
			Ranker:      client,
			Enhancer:    client,
		}),
		library.WithDemoSeed(cfg.Store.SeedDemo),
	)
	return a, nil
}

func (a *App) connectRedis(ctx context.Context) error {
	cfg := a.Config
	needed := cfg.Store.Backend == "redis"
	wanted := needed || cfg.Search.CacheTTL > 0
	if !wanted {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		if needed {
			return fmt.Errorf("connect redis: %w", err)
		}
		slog.Warn("redis unavailable, running without ranking cache", "error", err)
		return nil
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { rdb.Close() })
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "memory":
		return storage.NewMemoryStore(nil), nil
	case "redis":
		return storage.NewRedisStore(a.Redis, cfg.Store.Key), nil
	case "postgres":
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)

		var src fs.FS = migrations.FS
		if cfg.Database.MigrationsPath != "" {
			src = os.DirFS(cfg.Database.MigrationsPath)
		}
		if _, err := database.RunMigrations(ctx, db, src); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return storage.NewPostgresStore(db, cfg.Store.Name), nil
	default:
		return storage.NewFileStore(cfg.Store.Path), nil
	}
}

func (a *App) genaiClient() *genai.Client {
	cfg := a.Config
	opts := []genai.Option{genai.WithJudgeModel(cfg.LLM.EvalModel)}

	if cfg.LLM.OpenAIKey != "" {
		opts = append(opts,
			genai.WithImageGenerator(multimodal.NewImageGenerator(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL, cfg.Media.ImageModel)),
			genai.WithVideoGenerator(multimodal.NewVideoGenerator(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIBaseURL, cfg.Media.VideoModel, cfg.Media.VideoPollInterval)),
		)
	}
	if cfg.Media.SupabaseURL != "" && cfg.Media.SupabaseKey != "" {
		opts = append(opts, genai.WithMediaStore(storage.NewSupabaseStorage(cfg.Media.SupabaseURL, cfg.Media.SupabaseKey, cfg.Media.Bucket)))
	}
	if cfg.Search.Ranker == "embedding" {
		opts = append(opts, genai.WithEmbeddingRanker(embedding.NewService(a.Gateway, cfg.Search.EmbeddingModel), minEmbeddingSimilarity))
	}
	if a.Redis != nil && cfg.Search.CacheTTL > 0 {
		opts = append(opts, genai.WithCache(cache.NewCache(a.Redis, "promptlibrary:rank:"), cfg.Search.CacheTTL))
	}
	return genai.New(a.Gateway, opts...)
}

// Checks returns readiness probes for the connected backends.
func (a *App) Checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"store": func(ctx context.Context) error {
			_, err := a.Store.Load(ctx)
			if errors.Is(err, storage.ErrNoCollection) {
				return nil
			}
			return err
		},
	}
	if a.DB != nil {
		checks["database"] = a.DB.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
