package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
	"github.com/nikhilbhutani/promptlibrary/internal/queue"
)

// Library is the part of *library.Library the workers drive.
type Library interface {
	Execute(ctx context.Context, run library.PreparedRun) (library.RunOutcome, error)
	Evaluate(ctx context.Context, req library.EvaluateRequest) (models.TestResult, error)
}

type PromptWorker struct {
	lib Library
}

func NewPromptWorker(lib Library) *PromptWorker {
	return &PromptWorker{lib: lib}
}

// Register binds the worker's handlers to their task types.
func (w *PromptWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypeTestRun, asynq.HandlerFunc(w.ProcessTestRun))
	r.Register(queue.TypeEvaluate, asynq.HandlerFunc(w.ProcessEvaluate))
}

func (w *PromptWorker) ProcessTestRun(ctx context.Context, t *asynq.Task) error {
	var payload queue.TestRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	out, err := w.lib.Execute(ctx, payload.PreparedRun())
	if err != nil {
		return retryable(fmt.Errorf("execute run for prompt %s: %w", payload.PromptID, err))
	}

	slog.Info("test run recorded", "prompt_id", out.PromptID, "version", out.Version, "result_id", out.Result.ID)
	return nil
}

func (w *PromptWorker) ProcessEvaluate(ctx context.Context, t *asynq.Task) error {
	var payload queue.EvaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	r, err := w.lib.Evaluate(ctx, payload.Request())
	if err != nil {
		return retryable(fmt.Errorf("evaluate result %s: %w", payload.TestResultID, err))
	}

	slog.Info("test result evaluated", "prompt_id", payload.PromptID, "result_id", r.ID, "score", r.Evaluation.Score)
	return nil
}

// retryable marks failures that cannot succeed on a later attempt so asynq
// archives them instead of retrying.
func retryable(err error) error {
	switch {
	case errors.Is(err, prompt.ErrNotFound),
		errors.Is(err, prompt.ErrInvalidVersion),
		errors.Is(err, prompt.ErrValidation),
		errors.Is(err, prompt.ErrAlreadyEvaluated),
		errors.Is(err, prompt.ErrInvalidCredential):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
