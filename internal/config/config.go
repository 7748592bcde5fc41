package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Media    MediaConfig
	Search   SearchConfig
	Queue    QueueConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	RateLimit  float64 // requests per second per client
	RateBurst  int
	CORSOrigin string
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

// StoreConfig selects where the prompt collection lives.
type StoreConfig struct {
	Backend  string // "file", "redis", "postgres" or "memory"
	Path     string // file backend
	Key      string // redis backend
	Name     string // postgres backend: collection row name
	SeedDemo bool   // seed demo prompts when nothing is stored yet
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string // empty uses the embedded migrations
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	EvalModel        string
	MaxRetries       int
}

type MediaConfig struct {
	ImageModel        string
	VideoModel        string
	VideoPollInterval time.Duration
	SupabaseURL       string
	SupabaseKey       string
	Bucket            string
}

type SearchConfig struct {
	Ranker         string // "llm" or "embedding"
	EmbeddingModel string
	CacheTTL       time.Duration
}

type QueueConfig struct {
	Enabled     bool
	Concurrency int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rateLimit, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	rateBurst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	seedDemo, err := getEnvBool("STORE_SEED_DEMO", true)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_SEED_DEMO: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	pollInterval, err := getEnvDuration("VIDEO_POLL_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_POLL_INTERVAL: %w", err)
	}

	cacheTTL, err := getEnvDuration("SEARCH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_CACHE_TTL: %w", err)
	}

	queueEnabled, err := getEnvBool("QUEUE_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_ENABLED: %w", err)
	}

	concurrency, err := getEnvInt("QUEUE_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Port:       port,
			RateLimit:  rateLimit,
			RateBurst:  rateBurst,
			CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "file"),
			Path:     getEnv("STORE_PATH", "data/prompts.json"),
			Key:      getEnv("STORE_REDIS_KEY", "promptlibrary:collection"),
			Name:     getEnv("STORE_COLLECTION", "default"),
			SeedDemo: seedDemo,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			EvalModel:        getEnv("LLM_EVAL_MODEL", ""),
			MaxRetries:       maxRetries,
		},
		Media: MediaConfig{
			ImageModel:        getEnv("IMAGE_MODEL", "dall-e-3"),
			VideoModel:        getEnv("VIDEO_MODEL", "sora-2"),
			VideoPollInterval: pollInterval,
			SupabaseURL:       getEnv("SUPABASE_URL", ""),
			SupabaseKey:       getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:            getEnv("MEDIA_BUCKET", "prompt-media"),
		},
		Search: SearchConfig{
			Ranker:         getEnv("SEARCH_RANKER", "llm"),
			EmbeddingModel: getEnv("SEARCH_EMBEDDING_MODEL", ""),
			CacheTTL:       cacheTTL,
		},
		Queue: QueueConfig{
			Enabled:     queueEnabled,
			Concurrency: concurrency,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports settings that are required by the chosen backends.
func (c *Config) Validate() error {
	var missing []string
	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			missing = append(missing, "STORE_PATH")
		}
	case "postgres":
		if c.Database.URL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.Search.Ranker {
	case "llm", "embedding":
	default:
		return fmt.Errorf("unknown SEARCH_RANKER %q", c.Search.Ranker)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SlogLevel maps the configured level name onto slog, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
