package queue

import (
	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
)

const (
	TypeTestRun  = "prompt:test-run"
	TypeEvaluate = "prompt:evaluate"
)

// TestRunPayload is a run prepared by the API against the version that was
// active when it was requested.
type TestRunPayload struct {
	PromptID string          `json:"prompt_id"`
	Version  int             `json:"version"`
	Text     string          `json:"text"`
	Modality models.Modality `json:"modality"`
}

func NewTestRunPayload(run library.PreparedRun) TestRunPayload {
	return TestRunPayload{PromptID: run.PromptID, Version: run.Version, Text: run.Text, Modality: run.Modality}
}

func (p TestRunPayload) PreparedRun() library.PreparedRun {
	return library.PreparedRun{PromptID: p.PromptID, Version: p.Version, Text: p.Text, Modality: p.Modality}
}

type EvaluatePayload struct {
	PromptID     string `json:"prompt_id"`
	TestResultID string `json:"test_result_id"`
	Force        bool   `json:"force,omitempty"`
}

func (p EvaluatePayload) Request() library.EvaluateRequest {
	return library.EvaluateRequest{PromptID: p.PromptID, TestResultID: p.TestResultID, Force: p.Force}
}
