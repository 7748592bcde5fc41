package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/config"
)

// Gateway routes requests to a named provider with retry and an optional
// fallback provider.
type Gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	backoff          time.Duration
}

func NewGateway(cfg config.LLMConfig) *Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}

	g := NewGatewayWithProviders(cfg.DefaultProvider, cfg.FallbackProvider, cfg.MaxRetries, providers...)
	g.defaultModel = cfg.DefaultModel
	return g
}

// NewGatewayWithProviders builds a gateway over explicit providers.
func NewGatewayWithProviders(defaultProvider, fallbackProvider string, maxRetries int, providers ...Provider) *Gateway {
	g := &Gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  defaultProvider,
		fallbackProvider: fallbackProvider,
		maxRetries:       maxRetries,
		backoff:          500 * time.Millisecond,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *Gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Configured reports whether at least one provider is available.
func (g *Gateway) Configured() bool {
	return len(g.providers) > 0
}

func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	if req.Model == "" {
		req.Model = g.defaultModel
	}

	resp, err := g.completeWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// The primary's model name is meaningless to another provider.
		req.Model = ""
		return g.completeWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *Gateway) completeWithRetry(ctx context.Context, providerName string, req CompletionRequest) (*Completion, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			slog.Debug("llm call",
				"provider", resp.Provider,
				"model", resp.Model,
				"input_tokens", resp.InputTokens,
				"output_tokens", resp.OutputTokens,
				"cost_usd", resp.CostUSD,
				"latency_ms", resp.LatencyMs,
			)
			return resp, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *Gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	return p.Embed(ctx, req)
}

func (g *Gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{Provider: p.Name(), Model: m})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}
