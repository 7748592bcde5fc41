package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

// RunRequest carries values for the template placeholders of the active
// version. It is ignored for prompts without placeholders.
type RunRequest struct {
	Values map[string]string `json:"values"`
}

// RunOutcome is a recorded test run.
type RunOutcome struct {
	PromptID string            `json:"promptId"`
	Version  int               `json:"version"`
	Result   models.TestResult `json:"result"`
}

// PreparedRun is a run validated against the prompt's active version at the
// time it was requested.
type PreparedRun struct {
	PromptID string
	Version  int
	Text     string
	Modality models.Modality
}

// PrepareRun captures the active version and compiles its text. It fails with
// ErrValidation when a placeholder has no non-blank value.
func (l *Library) PrepareRun(ctx context.Context, id string, req RunRequest) (PreparedRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.current(ctx)
	if err != nil {
		return PreparedRun{}, err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return PreparedRun{}, notFound(id)
	}
	p := &prompts[i]

	active := prompt.ActiveVersion(p)
	if active == nil {
		return PreparedRun{}, fmt.Errorf("%w: prompt %s has no active version", prompt.ErrInvalidVersion, id)
	}

	text := active.PromptText
	if vars := prompt.ExtractVariables(text); len(vars) > 0 {
		if missing := prompt.MissingVariables(vars, req.Values); len(missing) > 0 {
			return PreparedRun{}, fmt.Errorf("%w: missing values for %s", prompt.ErrValidation, strings.Join(missing, ", "))
		}
		text = prompt.Compile(text, req.Values)
	}

	return PreparedRun{PromptID: id, Version: active.Version, Text: text, Modality: p.Modality}, nil
}

// RunTest executes the active version of a prompt and records the output on
// that version, even if another version becomes active meanwhile. A failed
// execution records nothing.
func (l *Library) RunTest(ctx context.Context, id string, req RunRequest) (RunOutcome, error) {
	run, err := l.PrepareRun(ctx, id, req)
	if err != nil {
		return RunOutcome{}, err
	}
	return l.Execute(ctx, run)
}

// Execute performs a prepared run. At most one run per prompt is in flight.
func (l *Library) Execute(ctx context.Context, run PreparedRun) (RunOutcome, error) {
	key := "run:" + run.PromptID
	if err := l.acquire(key); err != nil {
		return RunOutcome{}, err
	}
	defer l.release(key)

	if l.collab.Executor == nil {
		return RunOutcome{}, fmt.Errorf("%w: no executor configured", prompt.ErrExecution)
	}

	var output string
	var err error
	if run.Modality.IsMedia() {
		output, err = l.collab.Executor.GenerateMedia(ctx, run.Text, run.Modality)
	} else {
		output, err = l.collab.Executor.RunCompletion(ctx, run.Text)
	}
	if err != nil {
		slog.Warn("test run failed", "prompt_id", run.PromptID, "version", run.Version, "error", err)
		return RunOutcome{}, wrapAs(prompt.ErrExecution, err)
	}

	resultID := l.ids.NewID()
	updated, err := l.modify(ctx, run.PromptID, func(p models.Prompt) (models.Prompt, error) {
		return prompt.RecordTestRunOn(p, run.Version, resultID, output, l.now())
	})
	if err != nil {
		return RunOutcome{}, err
	}

	v := prompt.FindVersion(&updated, run.Version)
	slog.Info("test run recorded", "prompt_id", run.PromptID, "version", run.Version, "result_id", resultID)
	return RunOutcome{PromptID: run.PromptID, Version: run.Version, Result: v.TestResults[0]}, nil
}

// EvaluateRequest identifies a result in the active version of a prompt.
type EvaluateRequest struct {
	PromptID     string
	TestResultID string
	// Force re-scores a result that already has an evaluation.
	Force bool
}

// Evaluate scores a test result of the active version and attaches the
// evaluation. Image and video outputs cannot be evaluated.
func (l *Library) Evaluate(ctx context.Context, req EvaluateRequest) (models.TestResult, error) {
	promptText, output, err := l.prepareEvaluation(ctx, req)
	if err != nil {
		return models.TestResult{}, err
	}

	key := "eval:" + req.PromptID + "/" + req.TestResultID
	if err := l.acquire(key); err != nil {
		return models.TestResult{}, err
	}
	defer l.release(key)

	if l.collab.Evaluator == nil {
		return models.TestResult{}, fmt.Errorf("%w: no evaluator configured", prompt.ErrEvaluation)
	}

	ev, err := l.collab.Evaluator.EvaluateOutput(ctx, promptText, output)
	if err != nil {
		slog.Warn("evaluation failed", "prompt_id", req.PromptID, "result_id", req.TestResultID, "error", err)
		return models.TestResult{}, wrapAs(prompt.ErrEvaluation, err)
	}

	updated, err := l.modify(ctx, req.PromptID, func(p models.Prompt) (models.Prompt, error) {
		return prompt.AttachEvaluation(p, req.TestResultID, ev)
	})
	if err != nil {
		return models.TestResult{}, err
	}

	_, r := prompt.FindTestResult(&updated, req.TestResultID)
	slog.Info("test result evaluated", "prompt_id", req.PromptID, "result_id", req.TestResultID, "score", r.Evaluation.Score)
	return *r, nil
}

// CheckEvaluation reports whether req could be evaluated now without calling
// the evaluator. Queued evaluations are checked with it before enqueueing.
func (l *Library) CheckEvaluation(ctx context.Context, req EvaluateRequest) error {
	_, _, err := l.prepareEvaluation(ctx, req)
	return err
}

func (l *Library) prepareEvaluation(ctx context.Context, req EvaluateRequest) (string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.current(ctx)
	if err != nil {
		return "", "", err
	}
	i := indexOf(prompts, req.PromptID)
	if i < 0 {
		return "", "", notFound(req.PromptID)
	}
	p := &prompts[i]

	if !p.Modality.SupportsEvaluation() {
		return "", "", fmt.Errorf("%w: %s outputs cannot be evaluated", prompt.ErrValidation, p.Modality)
	}

	active := prompt.ActiveVersion(p)
	if active == nil {
		return "", "", fmt.Errorf("%w: prompt %s has no active version", prompt.ErrNotFound, p.ID)
	}
	var result *models.TestResult
	for j := range active.TestResults {
		if active.TestResults[j].ID == req.TestResultID {
			result = &active.TestResults[j]
			break
		}
	}
	if result == nil {
		return "", "", fmt.Errorf("%w: test result %s in version %d", prompt.ErrNotFound, req.TestResultID, active.Version)
	}
	if result.Evaluation != nil && !req.Force {
		return "", "", fmt.Errorf("%w: %s", prompt.ErrAlreadyEvaluated, req.TestResultID)
	}
	return active.PromptText, result.Output, nil
}

func (l *Library) acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[key] {
		return fmt.Errorf("%w: %s", prompt.ErrBusy, key)
	}
	l.inflight[key] = true
	return nil
}

func (l *Library) release(key string) {
	l.mu.Lock()
	delete(l.inflight, key)
	l.mu.Unlock()
}

// wrapAs tags a collaborator error with a taxonomy sentinel unless it already
// carries one.
func wrapAs(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
