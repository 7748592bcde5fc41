package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

// SortOrder names a list ordering as "<field>-<direction>".
type SortOrder string

const (
	SortCreatedDesc SortOrder = "createdAt-desc"
	SortCreatedAsc  SortOrder = "createdAt-asc"
	SortTitleAsc    SortOrder = "title-asc"
	SortTitleDesc   SortOrder = "title-desc"
	// SortRelevance keeps the ranker's order; it only applies to AI search.
	SortRelevance SortOrder = "relevance"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return "", nil
	case SortCreatedDesc, SortCreatedAsc, SortTitleAsc, SortTitleDesc, SortRelevance:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("%w: unknown sort order %q", prompt.ErrValidation, s)
}

type Query struct {
	Text     string
	AI       bool
	Modality models.Modality
	Theme    string
	Sort     SortOrder
}

// Search filters by modality and theme, then matches Text either as a
// case-insensitive keyword or through the relevance ranker. Without an
// explicit Sort, AI results keep relevance order and everything else is
// newest first.
func (l *Library) Search(ctx context.Context, q Query) ([]models.Prompt, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Prompt, 0, len(all))
	for _, p := range all {
		if q.Modality != "" && p.Modality != q.Modality {
			continue
		}
		if q.Theme != "" && p.Theme != q.Theme {
			continue
		}
		filtered = append(filtered, p)
	}

	text := strings.TrimSpace(q.Text)
	order := q.Sort
	switch {
	case text == "":
	case q.AI:
		filtered, err = l.rank(ctx, filtered, text)
		if err != nil {
			return nil, err
		}
		if order == "" {
			order = SortRelevance
		}
	default:
		filtered = matchKeyword(filtered, text)
	}

	if order == "" || (order == SortRelevance && !(q.AI && text != "")) {
		order = SortCreatedDesc
	}
	sortPrompts(filtered, order)
	return filtered, nil
}

func (l *Library) rank(ctx context.Context, prompts []models.Prompt, query string) ([]models.Prompt, error) {
	if len(prompts) == 0 {
		return prompts, nil
	}
	if l.collab.Ranker == nil {
		return nil, fmt.Errorf("%w: no ranker configured", prompt.ErrSearch)
	}

	candidates := make([]Candidate, len(prompts))
	byID := make(map[string]models.Prompt, len(prompts))
	for i, p := range prompts {
		candidates[i] = Candidate{ID: p.ID, Title: p.Title, Theme: p.Theme, Tags: p.Tags, Text: prompt.ActiveText(&p)}
		byID[p.ID] = p
	}

	ids, err := l.collab.Ranker.RankByRelevance(ctx, candidates, query)
	if err != nil {
		return nil, wrapAs(prompt.ErrSearch, err)
	}

	out := make([]models.Prompt, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, p)
		delete(byID, id)
	}
	return out, nil
}

func matchKeyword(prompts []models.Prompt, keyword string) []models.Prompt {
	kw := strings.ToLower(keyword)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), kw) }

	out := make([]models.Prompt, 0, len(prompts))
	for _, p := range prompts {
		match := contains(p.Title) || contains(prompt.ActiveText(&p)) || contains(p.Theme)
		for _, t := range p.Tags {
			match = match || contains(t)
		}
		if match {
			out = append(out, p)
		}
	}
	return out
}

func sortPrompts(prompts []models.Prompt, order SortOrder) {
	var less func(a, b *models.Prompt) bool
	switch order {
	case SortTitleAsc:
		less = func(a, b *models.Prompt) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortTitleDesc:
		less = func(a, b *models.Prompt) bool { return strings.ToLower(a.Title) > strings.ToLower(b.Title) }
	case SortCreatedAsc:
		less = func(a, b *models.Prompt) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortCreatedDesc:
		less = func(a, b *models.Prompt) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		return
	}
	sort.SliceStable(prompts, func(i, j int) bool { return less(&prompts[i], &prompts[j]) })
}

// Categorize suggests a theme and tags for text.
func (l *Library) Categorize(ctx context.Context, text string) (Categorization, error) {
	if strings.TrimSpace(text) == "" {
		return Categorization{}, fmt.Errorf("%w: prompt text is required", prompt.ErrValidation)
	}
	if l.collab.Categorizer == nil {
		return Categorization{}, fmt.Errorf("%w: no categorizer configured", prompt.ErrCategorization)
	}

	c, err := l.collab.Categorizer.SuggestCategorization(ctx, text)
	if err != nil {
		return Categorization{}, wrapAs(prompt.ErrCategorization, err)
	}

	tags := make([]string, 0, MaxSuggestedTags)
	for _, t := range c.Tags {
		if t = strings.TrimSpace(t); t != "" && len(tags) < MaxSuggestedTags {
			tags = append(tags, t)
		}
	}
	return Categorization{Theme: strings.TrimSpace(c.Theme), Tags: tags}, nil
}

// Enhance asks for rewrites of the active text of a prompt. Suggestions are
// returned, never applied; applying one is an ordinary Update.
func (l *Library) Enhance(ctx context.Context, id string, mode EnhanceMode) ([]string, error) {
	if _, err := ParseEnhanceMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", prompt.ErrValidation, err)
	}

	p, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.collab.Enhancer == nil {
		return nil, fmt.Errorf("%w: no enhancer configured", prompt.ErrExecution)
	}

	suggestions, err := l.collab.Enhancer.Enhance(ctx, prompt.ActiveText(&p), mode)
	if err != nil {
		return nil, wrapAs(prompt.ErrExecution, err)
	}
	return suggestions, nil
}
