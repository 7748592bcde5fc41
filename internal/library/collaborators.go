package library

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
)

// Executor runs a compiled prompt. GenerateMedia returns a locator for the
// produced media (a URL or a data URI).
type Executor interface {
	RunCompletion(ctx context.Context, text string) (string, error)
	GenerateMedia(ctx context.Context, text string, modality models.Modality) (string, error)
}

type Evaluator interface {
	EvaluateOutput(ctx context.Context, promptText, output string) (models.Evaluation, error)
}

// Categorization is a suggested theme and up to MaxSuggestedTags tags.
type Categorization struct {
	Theme string   `json:"theme"`
	Tags  []string `json:"tags"`
}

const MaxSuggestedTags = 3

type Categorizer interface {
	SuggestCategorization(ctx context.Context, text string) (Categorization, error)
}

// Candidate is the slice of a prompt shown to a relevance ranker.
type Candidate struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Theme string   `json:"theme"`
	Tags  []string `json:"tags"`
	Text  string   `json:"-"`
}

// Ranker returns candidate ids ordered from most to least relevant. It may
// omit candidates and may return ids that are not candidates.
type Ranker interface {
	RankByRelevance(ctx context.Context, candidates []Candidate, query string) ([]string, error)
}

type EnhanceMode string

const (
	EnhanceImprove    EnhanceMode = "improve"
	EnhanceVariations EnhanceMode = "variations"
)

func ParseEnhanceMode(s string) (EnhanceMode, error) {
	switch EnhanceMode(s) {
	case EnhanceImprove, EnhanceVariations:
		return EnhanceMode(s), nil
	}
	return "", fmt.Errorf("unknown enhance mode %q", s)
}

type Enhancer interface {
	Enhance(ctx context.Context, text string, mode EnhanceMode) ([]string, error)
}

// Collaborators groups the external services the library calls. Any of them
// may be nil; operations needing a missing one fail with a wrapped taxonomy
// error.
type Collaborators struct {
	Executor    Executor
	Evaluator   Evaluator
	Categorizer Categorizer
	Ranker      Ranker
	Enhancer    Enhancer
}

// IDGenerator supplies ids for new prompts and test results.
type IDGenerator interface {
	NewID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }
