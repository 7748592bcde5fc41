package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptlibrary/internal/llm"
)

type stubCompleter struct {
	content string
	err     error
	req     llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Completion{Content: s.content}, nil
}

func TestOutputJudge_Judge(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantScore int
	}{
		{name: "plain", content: `{"score": 8, "feedback": "Solid."}`, wantScore: 8},
		{name: "fenced", content: "```json\n{\"score\": 6, \"feedback\": \"ok\"}\n```", wantScore: 6},
		{name: "fractional rounds", content: `{"score": 7.6, "feedback": "x"}`, wantScore: 8},
		{name: "above range clamps", content: `{"score": 42, "feedback": "x"}`, wantScore: 10},
		{name: "below range clamps", content: `{"score": -3, "feedback": "x"}`, wantScore: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{content: tt.content}
			v, err := NewOutputJudge(stub, "judge-model").Judge(context.Background(), "Write a haiku", "leaves fall")
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, v.Score)
			assert.Equal(t, "judge-model", stub.req.Model)
			assert.True(t, stub.req.JSON)
			assert.Contains(t, stub.req.Messages[1].Content, "Write a haiku")
		})
	}
}

func TestOutputJudge_Errors(t *testing.T) {
	_, err := NewOutputJudge(&stubCompleter{content: "not json"}, "").Judge(context.Background(), "p", "o")
	assert.ErrorContains(t, err, "parse verdict")

	_, err = NewOutputJudge(&stubCompleter{content: "{}"}, "").Judge(context.Background(), "p", "o")
	assert.ErrorContains(t, err, "empty response")

	boom := errors.New("boom")
	_, err = NewOutputJudge(&stubCompleter{err: boom}, "").Judge(context.Background(), "p", "o")
	assert.ErrorIs(t, err, boom)
}
