// Package genai implements the library's collaborators on top of the LLM
// gateway, the media generators and the output judge.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/promptlibrary/internal/cache"
	"github.com/nikhilbhutani/promptlibrary/internal/embedding"
	"github.com/nikhilbhutani/promptlibrary/internal/eval"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/llm"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/multimodal"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
)

// MediaGenerator produces an image or video for a prompt.
type MediaGenerator interface {
	Generate(ctx context.Context, prompt string) (*multimodal.Media, error)
}

// Client satisfies every collaborator interface of package library.
type Client struct {
	completer llm.Completer
	model     string
	judge     *eval.OutputJudge
	images    MediaGenerator
	videos    MediaGenerator
	media     storage.MediaStore

	embeddings    *embedding.Service
	minSimilarity float64
	cache         *cache.Cache
	cacheTTL      time.Duration
}

var (
	_ library.Executor    = (*Client)(nil)
	_ library.Evaluator   = (*Client)(nil)
	_ library.Categorizer = (*Client)(nil)
	_ library.Ranker      = (*Client)(nil)
	_ library.Enhancer    = (*Client)(nil)
)

type Option func(*Client)

// WithModel sets the model used for completions, categorization, ranking
// and enhancement. Empty uses the gateway default.
func WithModel(model string) Option { return func(c *Client) { c.model = model } }

// WithJudgeModel sets the model used to evaluate outputs.
func WithJudgeModel(model string) Option {
	return func(c *Client) { c.judge = eval.NewOutputJudge(c.completer, model) }
}

func WithImageGenerator(g MediaGenerator) Option { return func(c *Client) { c.images = g } }
func WithVideoGenerator(g MediaGenerator) Option { return func(c *Client) { c.videos = g } }

// WithMediaStore uploads generated media and records its locator instead of
// an inline data URI.
func WithMediaStore(s storage.MediaStore) Option { return func(c *Client) { c.media = s } }

// WithEmbeddingRanker ranks search candidates by cosine similarity instead of
// asking the model. Candidates scoring below minSimilarity are dropped.
func WithEmbeddingRanker(s *embedding.Service, minSimilarity float64) Option {
	return func(c *Client) {
		c.embeddings = s
		c.minSimilarity = minSimilarity
	}
}

// WithCache memoises search rankings.
func WithCache(cc *cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.cacheTTL = ttl
	}
}

func New(completer llm.Completer, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		media:     storage.DataURIStore{},
	}
	c.judge = eval.NewOutputJudge(completer, "")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RunCompletion(ctx context.Context, text string) (string, error) {
	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		Model:    c.model,
		Messages: []llm.Message{llm.User(text)},
	})
	if err != nil {
		return "", classify(err)
	}
	return resp.Content, nil
}

func (c *Client) GenerateMedia(ctx context.Context, text string, modality models.Modality) (string, error) {
	var gen MediaGenerator
	var ext string
	switch modality {
	case models.ModalityImage:
		gen, ext = c.images, ".png"
	case models.ModalityVideo:
		gen, ext = c.videos, ".mp4"
	default:
		return "", fmt.Errorf("no media generation for %s prompts", modality)
	}
	if gen == nil {
		return "", fmt.Errorf("no %s generator configured", strings.ToLower(string(modality)))
	}

	m, err := gen.Generate(ctx, text)
	if err != nil {
		return "", classify(err)
	}

	path := "runs/" + uuid.NewString() + ext
	loc, err := c.media.Put(ctx, path, m.Data, m.ContentType)
	if err != nil {
		return "", fmt.Errorf("store generated %s: %w", strings.ToLower(string(modality)), err)
	}
	slog.Info("media generated", "modality", modality, "model", m.Model, "bytes", len(m.Data))
	return loc, nil
}

func (c *Client) EvaluateOutput(ctx context.Context, promptText, output string) (models.Evaluation, error) {
	v, err := c.judge.Judge(ctx, promptText, output)
	if err != nil {
		return models.Evaluation{}, classify(err)
	}
	return models.Evaluation{Score: prompt.ClampScore(v.Score), Feedback: v.Feedback}, nil
}

const categorizeInstructions = `Analyze the following AI prompt and categorize it.

Based on the prompt, provide:
1. A single, concise theme (e.g., "Creative Writing", "Marketing Copy", "Software Development", "Logo Design").
2. An array of up to 3 specific, relevant tags (e.g., ["sci-fi", "e-commerce", "python", "minimalist"]).

Reply with ONLY a JSON object: {"theme": "...", "tags": ["..."]}`

func (c *Client) SuggestCategorization(ctx context.Context, text string) (library.Categorization, error) {
	var out library.Categorization
	if err := c.completeJSON(ctx, categorizeInstructions, "Prompt: "+text, &out); err != nil {
		return library.Categorization{}, err
	}
	if len(out.Tags) > library.MaxSuggestedTags {
		out.Tags = out.Tags[:library.MaxSuggestedTags]
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out, nil
}

func enhanceSystemPrompt(mode library.EnhanceMode) string {
	task := "Rewrite the prompt 3 different ways so that each is clearer, more specific and more likely to produce a high quality result. Keep the original intent and keep any [placeholder] variables."
	if mode == library.EnhanceVariations {
		task = "Write 3 creative variations of the prompt that explore different angles, styles or subjects while staying in the same domain. Keep any [placeholder] variables."
	}
	return "You are an expert prompt engineer. " + task + `

Reply with ONLY a JSON object: {"suggestions": ["...", "...", "..."]}`
}

func (c *Client) Enhance(ctx context.Context, text string, mode library.EnhanceMode) ([]string, error) {
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.completeJSON(ctx, enhanceSystemPrompt(mode), "Prompt: "+text, &out); err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("model returned no suggestions")
	}
	return suggestions, nil
}

// RankByRelevance orders candidate ids for query, through embeddings when
// configured and the model otherwise. Results are cached when a cache is set.
func (c *Client) RankByRelevance(ctx context.Context, candidates []library.Candidate, query string) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}

	key := c.rankingKey(candidates, query)
	if c.cache != nil {
		var cached []string
		err := c.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("ranking cache read failed", "error", err)
		}
	}

	var ids []string
	var err error
	if c.embeddings != nil {
		ids, err = c.rankByEmbedding(ctx, candidates, query)
	} else {
		ids, err = c.rankByModel(ctx, candidates, query)
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, ids, c.cacheTTL); err != nil {
			slog.Warn("ranking cache write failed", "error", err)
		}
	}
	return ids, nil
}

func (c *Client) rankingKey(candidates []library.Candidate, query string) string {
	parts := []string{"rank", c.model, strings.ToLower(strings.TrimSpace(query))}
	if c.embeddings != nil {
		parts[0] = "rank-embed"
	}
	for _, cand := range candidates {
		parts = append(parts, cand.ID, cand.Title, cand.Theme, strings.Join(cand.Tags, ","), cand.Text)
	}
	return cache.Key(parts...)
}

const rankInstructions = `A user is searching a library of AI prompts. Analyze the search query and the list
of prompts, then return the IDs of the prompts that are most semantically relevant to the
query, ordered from most to least relevant. Leave out prompts that are not relevant.

Reply with ONLY a JSON object: {"ids": ["..."]}`

func (c *Client) rankByModel(ctx context.Context, candidates []library.Candidate, query string) ([]string, error) {
	list, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	var out struct {
		IDs []string `json:"ids"`
	}
	user := fmt.Sprintf("Search query: %q\n\nPrompts:\n%s", query, list)
	if err := c.completeJSON(ctx, rankInstructions, user, &out); err != nil {
		return nil, err
	}
	if out.IDs == nil {
		out.IDs = []string{}
	}
	return out.IDs, nil
}

func (c *Client) rankByEmbedding(ctx context.Context, candidates []library.Candidate, query string) ([]string, error) {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, cand := range candidates {
		texts = append(texts, fmt.Sprintf("%s\n%s\n%s\n%s", cand.Title, cand.Theme, strings.Join(cand.Tags, ", "), cand.Text))
	}

	vecs, err := c.embeddings.Embed(ctx, texts)
	if err != nil {
		return nil, classify(err)
	}

	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for i, cand := range candidates {
		s := embedding.CosineSimilarity(vecs[0], vecs[i+1])
		if s >= c.minSimilarity {
			ranked = append(ranked, scored{id: cand.ID, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	return ids, nil
}

func (c *Client) completeJSON(ctx context.Context, system, user string, dest any) error {
	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		Model:    c.model,
		Messages: []llm.Message{llm.System(system), llm.User(user)},
		JSON:     true,
	})
	if err != nil {
		return classify(err)
	}
	if err := json.Unmarshal([]byte(eval.StripFences(resp.Content)), dest); err != nil {
		return fmt.Errorf("parse model response: %w", err)
	}
	return nil
}

// classify marks credential rejections so callers can tell them apart from
// other upstream failures.
func classify(err error) error {
	if errors.Is(err, llm.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", prompt.ErrInvalidCredential, err)
	}
	return err
}
