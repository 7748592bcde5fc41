// Package eval scores generated outputs with an LLM acting as judge.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/llm"
)

// Verdict is the judge's score on a 1 to 10 scale with short feedback.
type Verdict struct {
	Score    int           `json:"score"`
	Feedback string        `json:"feedback"`
	Duration time.Duration `json:"-"`
}

// OutputJudge rates how well an output fulfils the prompt that produced it.
type OutputJudge struct {
	completer llm.Completer
	model     string
}

func NewOutputJudge(c llm.Completer, model string) *OutputJudge {
	return &OutputJudge{completer: c, model: model}
}

const judgeSystemPrompt = `You are an expert evaluator of generative AI outputs.
Given a prompt and the output it produced, rate how well the output fulfils the prompt
on a scale of 1 (poor) to 10 (excellent). Consider accuracy, completeness, adherence to
the instructions, and overall quality.

Reply with ONLY a JSON object:
{"score": 7, "feedback": "one or two sentences explaining the score"}`

func (j *OutputJudge) Judge(ctx context.Context, promptText, output string) (*Verdict, error) {
	start := time.Now()

	resp, err := j.completer.Complete(ctx, llm.CompletionRequest{
		Model: j.model,
		Messages: []llm.Message{
			llm.System(judgeSystemPrompt),
			llm.User(fmt.Sprintf("Prompt:\n%s\n\nOutput:\n%s", promptText, output)),
		},
		JSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("output judge: %w", err)
	}

	v, err := parseVerdict(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("output judge: %w", err)
	}
	v.Duration = time.Since(start)
	return v, nil
}

// StripFences removes a surrounding markdown code fence, which models add
// even when asked for bare JSON.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func parseVerdict(content string) (*Verdict, error) {
	var parsed struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(StripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}
	if parsed.Score == 0 && parsed.Feedback == "" {
		return nil, fmt.Errorf("parse verdict: empty response")
	}

	score := int(parsed.Score + 0.5)
	return &Verdict{Score: min(max(score, 1), 10), Feedback: strings.TrimSpace(parsed.Feedback)}, nil
}
