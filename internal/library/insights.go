package library

import (
	"context"
	"fmt"
	"sort"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
	"github.com/nikhilbhutani/promptlibrary/pkg/tokenizer"
)

type VersionSummary struct {
	models.PromptVersion
	Tokens       int      `json:"tokens"`
	Variables    []string `json:"variables"`
	AverageScore *float64 `json:"averageScore,omitempty"`
}

type Comparison struct {
	PromptID   string         `json:"promptId"`
	Left       VersionSummary `json:"left"`
	Right      VersionSummary `json:"right"`
	TokenDelta int            `json:"tokenDelta"`
}

// Compare puts two versions of a prompt side by side.
func (l *Library) Compare(ctx context.Context, id string, left, right int) (Comparison, error) {
	p, err := l.Get(ctx, id)
	if err != nil {
		return Comparison{}, err
	}

	a := prompt.FindVersion(&p, left)
	b := prompt.FindVersion(&p, right)
	if a == nil || b == nil {
		missing := left
		if a != nil {
			missing = right
		}
		return Comparison{}, fmt.Errorf("%w: version %d does not exist", prompt.ErrInvalidVersion, missing)
	}

	return Comparison{
		PromptID:   id,
		Left:       summarize(*a),
		Right:      summarize(*b),
		TokenDelta: tokenizer.Diff(a.PromptText, b.PromptText),
	}, nil
}

func summarize(v models.PromptVersion) VersionSummary {
	s := VersionSummary{
		PromptVersion: v,
		Tokens:        tokenizer.CountTokens(v.PromptText),
		Variables:     prompt.ExtractVariables(v.PromptText),
	}
	if s.Variables == nil {
		s.Variables = []string{}
	}
	total, n := 0, 0
	for _, r := range v.TestResults {
		if r.Evaluation != nil {
			total += r.Evaluation.Score
			n++
		}
	}
	if n > 0 {
		avg := float64(total) / float64(n)
		s.AverageScore = &avg
	}
	return s
}

// SharedPrompt is the read-only view of a prompt: its active version and the
// best scored result from any version.
type SharedPrompt struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Theme      string             `json:"theme"`
	Tags       []string           `json:"tags"`
	Modality   models.Modality    `json:"modality"`
	Version    int                `json:"version"`
	PromptText string             `json:"promptText"`
	BestResult *models.TestResult `json:"bestResult,omitempty"`
}

func (l *Library) Share(ctx context.Context, id string) (SharedPrompt, error) {
	p, err := l.Get(ctx, id)
	if err != nil {
		return SharedPrompt{}, err
	}

	shared := SharedPrompt{
		ID:         p.ID,
		Title:      p.Title,
		Theme:      p.Theme,
		Tags:       p.Tags,
		Modality:   p.Modality,
		Version:    p.CurrentVersion,
		PromptText: prompt.ActiveText(&p),
	}
	if best := prompt.BestTestResult(&p); best != nil {
		r := best.Clone()
		shared.BestResult = &r
	}
	return shared, nil
}

type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalPrompts  int      `json:"totalPrompts"`
	Modalities    []Count  `json:"modalities"`
	MostUsed      string   `json:"mostUsedModality"`
	Themes        []Count  `json:"themes"`
	TotalThemes   int      `json:"totalThemes"`
	TopThemes     []string `json:"topThemes"`
	TotalVersions int      `json:"totalVersions"`
	TotalTestRuns int      `json:"totalTestRuns"`
	EvaluatedRuns int      `json:"evaluatedRuns"`
	AverageScore  *float64 `json:"averageScore,omitempty"`
}

const (
	statsThemeLimit = 10
	topThemesLimit  = 5
)

func (l *Library) Stats(ctx context.Context) (Stats, error) {
	prompts, err := l.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(prompts), nil
}

// ComputeStats summarises a collection. Prompts without a theme are not
// counted towards themes. Ties are broken by name.
func ComputeStats(prompts []models.Prompt) Stats {
	s := Stats{TotalPrompts: len(prompts), MostUsed: "N/A", TopThemes: []string{}}

	modalities := map[string]int{}
	themes := map[string]int{}
	scoreTotal := 0
	for _, p := range prompts {
		modalities[string(p.Modality)]++
		if p.Theme != "" {
			themes[p.Theme]++
		}
		s.TotalVersions += len(p.Versions)
		for _, v := range p.Versions {
			s.TotalTestRuns += len(v.TestResults)
			for _, r := range v.TestResults {
				if r.Evaluation != nil {
					s.EvaluatedRuns++
					scoreTotal += r.Evaluation.Score
				}
			}
		}
	}

	s.Modalities = rankCounts(modalities)
	if len(s.Modalities) > 0 {
		s.MostUsed = s.Modalities[0].Name
	}

	ranked := rankCounts(themes)
	s.TotalThemes = len(ranked)
	s.Themes = ranked[:min(len(ranked), statsThemeLimit)]
	for _, c := range ranked[:min(len(ranked), topThemesLimit)] {
		s.TopThemes = append(s.TopThemes, c.Name)
	}

	if s.EvaluatedRuns > 0 {
		avg := float64(scoreTotal) / float64(s.EvaluatedRuns)
		s.AverageScore = &avg
	}
	return s
}

func rankCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
