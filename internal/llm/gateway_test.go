package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	calls int
	errs  []error
	reply string
	last  CompletionRequest
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Models() []string { return []string{f.name + "-model"} }

func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.calls++
	f.last = req
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Completion{Provider: f.name, Model: req.Model, Content: f.reply}, nil
}

func (f *fakeProvider) Embed(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	out := make([][]float32, len(req.Input))
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return &EmbeddingResponse{Provider: f.name, Embeddings: out}, nil
}

func newTestGateway(maxRetries int, providers ...Provider) *Gateway {
	g := NewGatewayWithProviders("primary", "backup", maxRetries, providers...)
	g.backoff = time.Millisecond
	return g
}

func TestGateway_RetriesThenSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("boom"), nil}, reply: "ok"}
	g := newTestGateway(2, primary)

	resp, err := g.Complete(context.Background(), CompletionRequest{Messages: []Message{User("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, primary.calls)
}

func TestGateway_FallsBackAfterRetries(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("a"), errors.New("b")}}
	backup := &fakeProvider{name: "backup", reply: "from backup"}
	g := newTestGateway(1, primary, backup)

	resp, err := g.Complete(context.Background(), CompletionRequest{Model: "primary-model"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, 2, primary.calls)
	assert.Empty(t, backup.last.Model)
}

func TestGateway_UnauthorizedIsNotRetried(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{fmt.Errorf("%w: bad key", ErrUnauthorized)}}
	g := NewGatewayWithProviders("primary", "", 3, primary)

	_, err := g.Complete(context.Background(), CompletionRequest{})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, primary.calls)
}

func TestGateway_UnknownProvider(t *testing.T) {
	g := NewGatewayWithProviders("missing", "", 0)
	assert.False(t, g.Configured())

	_, err := g.Complete(context.Background(), CompletionRequest{})
	assert.ErrorContains(t, err, `provider "missing" not configured`)
}

func TestGateway_ListModelsSorted(t *testing.T) {
	g := newTestGateway(0, &fakeProvider{name: "primary"}, &fakeProvider{name: "backup"})
	models := g.ListModels()
	require.Len(t, models, 2)
	assert.Equal(t, "backup", models[0].Provider)
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.00075, CalculateCost("gpt-4o-mini", 1000, 1000), 1e-9)
	assert.Zero(t, CalculateCost("llama3", 1000, 1000))
}

func TestOllamaProvider_Complete(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": `{"ok":true}`},
			"prompt_eval_count": 3,
			"eval_count":        5,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL + "/")
	resp, err := p.Complete(context.Background(), CompletionRequest{Model: "llama3", Messages: []Message{User("x")}, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, 5, resp.OutputTokens)
	assert.Equal(t, "json", got.Format)
}

func TestOllamaProvider_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL).Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
