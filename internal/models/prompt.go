package models

import (
	"fmt"
	"time"
)

// Modality is the output medium a prompt targets.
type Modality string

const (
	ModalityText  Modality = "Text"
	ModalityImage Modality = "Image"
	ModalityVideo Modality = "Video"
	ModalityAudio Modality = "Audio"
	ModalityCode  Modality = "Code"
)

// Modalities lists every valid modality in display order.
var Modalities = []Modality{ModalityText, ModalityImage, ModalityVideo, ModalityAudio, ModalityCode}

// ParseModality returns the modality named by s. Matching is exact.
func ParseModality(s string) (Modality, error) {
	for _, m := range Modalities {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTimestamp reads a createdAt value written as RFC 3339, a local
// date-time or a bare date.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsMedia reports whether test outputs are binary media rather than text.
func (m Modality) IsMedia() bool {
	return m == ModalityImage || m == ModalityVideo
}

// SupportsEvaluation reports whether outputs of this modality can be scored.
func (m Modality) SupportsEvaluation() bool {
	return !m.IsMedia()
}

type Prompt struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Versions       []PromptVersion `json:"versions"`
	CurrentVersion int             `json:"currentVersion"`
	Modality       Modality        `json:"modality"`
	Theme          string          `json:"theme"`
	Tags           []string        `json:"tags"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type PromptVersion struct {
	Version     int          `json:"version"`
	PromptText  string       `json:"promptText"`
	CreatedAt   time.Time    `json:"createdAt"`
	TestResults []TestResult `json:"testResults"`
}

// TestResult is one recorded execution of a version. A nil Evaluation means
// the result has not been scored yet.
type TestResult struct {
	ID         string      `json:"id"`
	Output     string      `json:"output"`
	CreatedAt  time.Time   `json:"createdAt"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

type Evaluation struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Clone returns a deep copy of the prompt.
func (p Prompt) Clone() Prompt {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Versions != nil {
		out.Versions = make([]PromptVersion, len(p.Versions))
		for i, v := range p.Versions {
			out.Versions[i] = v.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the version including its test history.
func (v PromptVersion) Clone() PromptVersion {
	out := v
	if v.TestResults != nil {
		out.TestResults = make([]TestResult, len(v.TestResults))
		for i, r := range v.TestResults {
			out.TestResults[i] = r.Clone()
		}
	}
	return out
}

func (r TestResult) Clone() TestResult {
	out := r
	if r.Evaluation != nil {
		ev := *r.Evaluation
		out.Evaluation = &ev
	}
	return out
}
