package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/queue"
)

// Enqueuer hands runs and evaluations to the background worker.
type Enqueuer interface {
	EnqueueTestRun(ctx context.Context, run library.PreparedRun) (*queue.Enqueued, error)
	EnqueueEvaluate(ctx context.Context, req library.EvaluateRequest) (*queue.Enqueued, error)
}

type RunHandler struct {
	lib   *library.Library
	queue Enqueuer
}

// NewRunHandler returns a handler that runs synchronously. With a non-nil
// queue, requests with ?async=true are enqueued and answered with 202.
func NewRunHandler(lib *library.Library, q Enqueuer) *RunHandler {
	return &RunHandler{lib: lib, queue: q}
}

func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req library.RunRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.lib.PrepareRun(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.async(r) {
		task, err := h.queue.EnqueueTestRun(r.Context(), run)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"promptId": id, "version": run.Version, "task": task})
		return
	}

	out, err := h.lib.Execute(r.Context(), run)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *RunHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	req := library.EvaluateRequest{
		PromptID:     chi.URLParam(r, "id"),
		TestResultID: chi.URLParam(r, "resultID"),
		Force:        force,
	}

	if h.async(r) {
		if err := h.lib.CheckEvaluation(r.Context(), req); err != nil {
			writeError(w, r, err)
			return
		}
		task, err := h.queue.EnqueueEvaluate(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"promptId": req.PromptID, "testResultId": req.TestResultID, "task": task})
		return
	}

	result, err := h.lib.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RunHandler) async(r *http.Request) bool {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return async && h.queue != nil
}

// decodeOptional decodes a JSON body, leaving dest untouched when the body is
// empty.
func decodeOptional(r *http.Request, dest any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return err
	}
	return json.Unmarshal(data, dest)
}
