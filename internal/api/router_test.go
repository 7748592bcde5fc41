package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptlibrary/internal/api/handlers"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
	"github.com/nikhilbhutani/promptlibrary/internal/queue"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
)

type stubAI struct {
	output  string
	err     error
	evalErr error
}

func (s *stubAI) RunCompletion(context.Context, string) (string, error) { return s.output, s.err }

func (s *stubAI) GenerateMedia(context.Context, string, models.Modality) (string, error) {
	return "data:image/png;base64,AA==", s.err
}

func (s *stubAI) EvaluateOutput(context.Context, string, string) (models.Evaluation, error) {
	return models.Evaluation{Score: 8, Feedback: "solid"}, s.evalErr
}

func (s *stubAI) SuggestCategorization(context.Context, string) (library.Categorization, error) {
	return library.Categorization{Theme: "Marketing", Tags: []string{"coffee"}}, s.err
}

type stubQueue struct {
	runs  []library.PreparedRun
	evals []library.EvaluateRequest
}

func (q *stubQueue) EnqueueTestRun(_ context.Context, run library.PreparedRun) (*queue.Enqueued, error) {
	q.runs = append(q.runs, run)
	return &queue.Enqueued{TaskID: "t1", Type: queue.TypeTestRun, Queue: "default"}, nil
}

func (q *stubQueue) EnqueueEvaluate(_ context.Context, req library.EvaluateRequest) (*queue.Enqueued, error) {
	q.evals = append(q.evals, req)
	return &queue.Enqueued{TaskID: "t2", Type: queue.TypeEvaluate, Queue: "default"}, nil
}

type testServer struct {
	t     *testing.T
	h     http.Handler
	ai    *stubAI
	queue *stubQueue
}

func newTestServer(t *testing.T, checks map[string]handlers.Check) *testServer {
	t.Helper()
	ai := &stubAI{output: "generated"}
	q := &stubQueue{}
	lib := library.New(storage.NewMemoryStore(nil),
		library.WithCollaborators(library.Collaborators{
			Executor:    ai,
			Evaluator:   ai,
			Categorizer: ai,
		}),
		library.WithClock(func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }),
	)
	rt := NewRouter(config.ServerConfig{CORSOrigin: "*"}, Deps{Library: lib, Queue: q, Checks: checks})
	return &testServer{t: t, h: rt.Setup(), ai: ai, queue: q}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) create(title, text string) models.Prompt {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/prompts", library.Draft{Title: title, PromptText: text})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Prompt](s.t, rec)
}

func TestPromptLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.create("Poem", "Write a poem about [topic]")
	assert.Equal(t, 1, p.CurrentVersion)

	rec := s.do(http.MethodPut, "/api/v1/prompts/"+p.ID, library.Draft{Title: "Poem", PromptText: "Write a sonnet about [topic]"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[models.Prompt](t, rec).CurrentVersion)

	rec = s.do(http.MethodPut, "/api/v1/prompts/"+p.ID+"/versions/active", map[string]int{"version": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.Prompt](t, rec).CurrentVersion)

	rec = s.do(http.MethodPut, "/api/v1/prompts/"+p.ID+"/versions/active", map[string]int{"version": 7})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/prompts/"+p.ID+"/compare?left=1&right=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cmp := decode[library.Comparison](t, rec)
	assert.Equal(t, 2, cmp.Right.Version)

	rec = s.do(http.MethodGet, "/api/v1/prompts/"+p.ID+"/compare?left=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/prompts/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/prompts/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], p.ID)
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/prompts", library.Draft{Title: " ", PromptText: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prompts", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndSearch(t *testing.T) {
	s := newTestServer(t, nil)
	s.create("Alpha", "python script")
	s.create("Beta", "a short story")

	rec := s.do(http.MethodGet, "/api/v1/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Prompts []models.Prompt `json:"prompts"`
		Count   int             `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "Beta", body.Prompts[0].Title)

	rec = s.do(http.MethodGet, "/api/v1/prompts?q=PYTHON", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Alpha"`)
	assert.NotContains(t, rec.Body.String(), `"title":"Beta"`)

	rec = s.do(http.MethodGet, "/api/v1/prompts?sort=title-asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alpha", decode[struct {
		Prompts []models.Prompt `json:"prompts"`
	}](t, rec).Prompts[0].Title)

	for _, bad := range []string{"sort=size", "modality=Hologram", "ai=maybe"} {
		rec = s.do(http.MethodGet, "/api/v1/prompts?"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = s.do(http.MethodGet, "/api/v1/prompts?q=x&ai=true", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code, "no ranker configured")
}

func TestRunAndEvaluate(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.create("Poem", "Write a poem about [topic]")

	rec := s.do(http.MethodPost, "/api/v1/prompts/"+p.ID+"/runs", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unfilled placeholder")

	rec = s.do(http.MethodPost, "/api/v1/prompts/"+p.ID+"/runs", library.RunRequest{Values: map[string]string{"topic": "rain"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[library.RunOutcome](t, rec)
	assert.Equal(t, "generated", out.Result.Output)

	evalPath := fmt.Sprintf("/api/v1/prompts/%s/results/%s/evaluate", p.ID, out.Result.ID)
	rec = s.do(http.MethodPost, evalPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, decode[models.TestResult](t, rec).Evaluation.Score)

	rec = s.do(http.MethodPost, evalPath, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, evalPath+"?force=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunAsync(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.create("T", "hello")

	rec := s.do(http.MethodPost, "/api/v1/prompts/"+p.ID+"/runs?async=true", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, s.queue.runs, 1)
	assert.Equal(t, library.PreparedRun{PromptID: p.ID, Version: 1, Text: "hello", Modality: models.ModalityText}, s.queue.runs[0])

	rec = s.do(http.MethodPost, "/api/v1/prompts/"+p.ID+"/results/missing/evaluate?async=true", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.queue.evals, "invalid evaluations are not enqueued")
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		want    int
	}{
		{"provider failure", errors.New("quota"), http.StatusBadGateway},
		{"bad credentials", prompt.ErrInvalidCredential, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			p := s.create("T", "x")
			s.ai.err = tt.execErr

			rec := s.do(http.MethodPost, "/api/v1/prompts/"+p.ID+"/runs", nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCategorizeAndStats(t *testing.T) {
	s := newTestServer(t, nil)
	s.create("T", "sell coffee")

	rec := s.do(http.MethodPost, "/api/v1/categorize", map[string]string{"promptText": "sell coffee"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Marketing", decode[library.Categorization](t, rec).Theme)

	rec = s.do(http.MethodPost, "/api/v1/categorize", map[string]string{"promptText": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[library.Stats](t, rec).TotalPrompts)
}

func TestImportExport(t *testing.T) {
	s := newTestServer(t, nil)
	csv := "id,title,promptText,modality,theme,tags,notes,createdAt\n" +
		"a1,First,hello,Text,,,,\n" +
		",Missing,x,Text,,,,\n"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "prompts.csv")
	require.NoError(t, err)
	fw.Write([]byte(csv))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"report":{"imported":1,"duplicates":0,"malformed":0,"missingId":1,"invalidModality":0},"skipped":1}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("bad,header\n1,2\n"))
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="ai-prompts-export-2026-05-01.json"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), `"id": "a1"`)
}

func TestImportTooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	body := "id,title,promptText,modality,theme,tags,notes,createdAt\n" + strings.Repeat("x", 10<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	list := decode[struct {
		Count int `json:"count"`
	}](t, s.do(http.MethodGet, "/api/v1/prompts", nil))
	assert.Zero(t, list.Count, "nothing is imported from a truncated upload")
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "ok", body.Checks["store"])
}
