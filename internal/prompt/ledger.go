package prompt

import (
	"fmt"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
)

// Metadata holds the non-versioned fields of a prompt.
type Metadata struct {
	Title    string          `json:"title"`
	Theme    string          `json:"theme"`
	Tags     []string        `json:"tags"`
	Notes    string          `json:"notes"`
	Modality models.Modality `json:"modality"`
}

func (m Metadata) apply(p *models.Prompt) {
	p.Title = m.Title
	p.Theme = m.Theme
	p.Tags = append([]string{}, m.Tags...)
	p.Notes = m.Notes
	p.Modality = m.Modality
}

// NewPrompt builds a prompt holding a single version 1 of text.
func NewPrompt(id, text string, meta Metadata, now time.Time) models.Prompt {
	p := models.Prompt{
		ID:             id,
		CreatedAt:      now,
		CurrentVersion: 1,
		Versions: []models.PromptVersion{{
			Version:     1,
			PromptText:  text,
			CreatedAt:   now,
			TestResults: []models.TestResult{},
		}},
	}
	meta.apply(&p)
	return p
}

// ApplyEdit saves newText and meta onto a copy of p. A new version is appended
// and made active only when newText differs from the active text; otherwise
// just the metadata changes. Existing versions are never rewritten.
func ApplyEdit(p models.Prompt, newText string, meta Metadata, now time.Time) models.Prompt {
	out := p.Clone()
	meta.apply(&out)

	if ActiveText(&p) == newText {
		return out
	}

	next := NextVersionNumber(&p)
	out.Versions = append(out.Versions, models.PromptVersion{
		Version:     next,
		PromptText:  newText,
		CreatedAt:   now,
		TestResults: []models.TestResult{},
	})
	out.CurrentVersion = next
	return out
}

// SetActiveVersion repoints the active version. History is left untouched.
func SetActiveVersion(p models.Prompt, version int) (models.Prompt, error) {
	if FindVersion(&p, version) == nil {
		return p, fmt.Errorf("%w: version %d does not exist", ErrInvalidVersion, version)
	}
	out := p.Clone()
	out.CurrentVersion = version
	return out, nil
}

// NextVersionNumber is one past the highest version number ever assigned.
func NextVersionNumber(p *models.Prompt) int {
	highest := 0
	for _, v := range p.Versions {
		if v.Version > highest {
			highest = v.Version
		}
	}
	return highest + 1
}

// FindVersion returns a pointer into p.Versions, or nil.
func FindVersion(p *models.Prompt, version int) *models.PromptVersion {
	if p == nil {
		return nil
	}
	for i := range p.Versions {
		if p.Versions[i].Version == version {
			return &p.Versions[i]
		}
	}
	return nil
}

// ActiveVersion returns the version matching CurrentVersion, or nil.
func ActiveVersion(p *models.Prompt) *models.PromptVersion {
	if p == nil {
		return nil
	}
	return FindVersion(p, p.CurrentVersion)
}

// ActiveText returns the text of the active version. It is safe on a nil or
// half-built prompt and returns "" there.
func ActiveText(p *models.Prompt) string {
	v := ActiveVersion(p)
	if v == nil {
		return ""
	}
	return v.PromptText
}
