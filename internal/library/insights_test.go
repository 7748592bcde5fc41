package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

func TestCompare(t *testing.T) {
	ctx := context.Background()
	lib, _ := newTestLibrary(t, Collaborators{
		Executor:  &fakeExecutor{output: "o"},
		Evaluator: &fakeEvaluator{ev: models.Evaluation{Score: 6}},
	})
	p, _ := lib.Create(ctx, textDraft("T", "short"))
	r := runOnce(t, lib, p.ID)
	_, err := lib.Evaluate(ctx, EvaluateRequest{PromptID: p.ID, TestResultID: r})
	require.NoError(t, err)
	lib.Update(ctx, p.ID, textDraft("T", "a much longer text about [topic] and more words"))

	cmp, err := lib.Compare(ctx, p.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.Left.Version)
	assert.Equal(t, []string{}, cmp.Left.Variables)
	assert.Equal(t, []string{"topic"}, cmp.Right.Variables)
	require.NotNil(t, cmp.Left.AverageScore)
	assert.InDelta(t, 6.0, *cmp.Left.AverageScore, 1e-9)
	assert.Nil(t, cmp.Right.AverageScore)
	assert.Positive(t, cmp.TokenDelta)

	_, err = lib.Compare(ctx, p.ID, 1, 3)
	assert.ErrorIs(t, err, prompt.ErrInvalidVersion)
}

func TestShare_PicksBestResultAcrossVersions(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{ev: models.Evaluation{Score: 9, Feedback: "best"}}
	lib, _ := newTestLibrary(t, Collaborators{Executor: &fakeExecutor{output: "o"}, Evaluator: eval})
	p, _ := lib.Create(ctx, textDraft("T", "v1"))

	best := runOnce(t, lib, p.ID)
	_, err := lib.Evaluate(ctx, EvaluateRequest{PromptID: p.ID, TestResultID: best})
	require.NoError(t, err)

	lib.Update(ctx, p.ID, textDraft("T", "v2"))
	worse := runOnce(t, lib, p.ID)
	eval.ev = models.Evaluation{Score: 4}
	_, err = lib.Evaluate(ctx, EvaluateRequest{PromptID: p.ID, TestResultID: worse})
	require.NoError(t, err)

	shared, err := lib.Share(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, shared.Version)
	assert.Equal(t, "v2", shared.PromptText)
	require.NotNil(t, shared.BestResult)
	assert.Equal(t, best, shared.BestResult.ID)
}

func TestShare_NoEvaluations(t *testing.T) {
	ctx := context.Background()
	lib, _ := newTestLibrary(t, Collaborators{})
	p, _ := lib.Create(ctx, textDraft("T", "x"))

	shared, err := lib.Share(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, shared.BestResult)
}

func TestComputeStats(t *testing.T) {
	prompts := DemoPrompts()
	prompts = append(prompts, prompt.NewPrompt("6", "x", prompt.Metadata{Modality: models.ModalityImage, Theme: "Concept Art"}, clock0))
	prompts = append(prompts, prompt.NewPrompt("7", "y", prompt.Metadata{Modality: models.ModalityText}, clock0))
	prompts[0] = prompt.RecordTestRun(prompts[0], "r1", "out", clock0)
	prompts[0], _ = prompt.AttachEvaluation(prompts[0], "r1", models.Evaluation{Score: 8})
	prompts[0] = prompt.RecordTestRun(prompts[0], "r2", "out", clock0)

	s := ComputeStats(prompts)
	assert.Equal(t, 7, s.TotalPrompts)
	assert.Equal(t, "Image", s.MostUsed)
	assert.Equal(t, Count{Name: "Concept Art", Count: 2}, s.Themes[0])
	assert.Equal(t, 5, s.TotalThemes, "prompts without a theme are not counted")
	assert.Len(t, s.TopThemes, 5)
	assert.Equal(t, 7, s.TotalVersions)
	assert.Equal(t, 2, s.TotalTestRuns)
	assert.Equal(t, 1, s.EvaluatedRuns)
	require.NotNil(t, s.AverageScore)
	assert.InDelta(t, 8.0, *s.AverageScore, 1e-9)
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Zero(t, s.TotalPrompts)
	assert.Equal(t, "N/A", s.MostUsed)
	assert.Empty(t, s.Themes)
	assert.Nil(t, s.AverageScore)
}
