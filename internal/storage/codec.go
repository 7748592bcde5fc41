package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

// storedPrompt mirrors models.Prompt with createdAt kept as text, so records
// written with a bare date still load.
type storedPrompt struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Versions       []storedVersion `json:"versions"`
	CurrentVersion int             `json:"currentVersion"`
	Modality       models.Modality `json:"modality"`
	Theme          string          `json:"theme"`
	Tags           []string        `json:"tags"`
	Notes          string          `json:"notes"`
	CreatedAt      string          `json:"createdAt"`
	// PromptText is only set on pre-versioning records.
	PromptText *string `json:"promptText"`
}

type storedVersion struct {
	Version     int            `json:"version"`
	PromptText  string         `json:"promptText"`
	CreatedAt   string         `json:"createdAt"`
	TestResults []storedResult `json:"testResults"`
}

type storedResult struct {
	ID         string             `json:"id"`
	Output     string             `json:"output"`
	CreatedAt  string             `json:"createdAt"`
	Evaluation *models.Evaluation `json:"evaluation"`
}

// DecodeCollection parses a stored collection, migrating legacy records into
// the versioned shape. now stamps records whose createdAt is missing or
// unreadable.
func DecodeCollection(data []byte, now time.Time) ([]models.Prompt, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.Prompt{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	prompts := make([]models.Prompt, 0, len(raw))
	for i, rec := range raw {
		p, err := decodeRecord(rec, now)
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		prompts = append(prompts, normalize(p))
	}
	return prompts, nil
}

// decodeRecord reads the versioned shape, or migrates a legacy record with a
// single promptText. Unparseable timestamps fall back to now.
func decodeRecord(rec json.RawMessage, now time.Time) (models.Prompt, error) {
	var sp storedPrompt
	if err := json.Unmarshal(rec, &sp); err != nil {
		return models.Prompt{}, fmt.Errorf("unrecognised record: %w", err)
	}
	created := stamp(sp.CreatedAt, now)

	if len(sp.Versions) == 0 {
		if sp.PromptText == nil {
			return models.Prompt{}, fmt.Errorf("record %q has neither versions nor promptText", sp.ID)
		}
		meta := prompt.Metadata{
			Title:    sp.Title,
			Theme:    sp.Theme,
			Tags:     sp.Tags,
			Notes:    sp.Notes,
			Modality: sp.Modality,
		}
		return prompt.NewPrompt(sp.ID, *sp.PromptText, meta, created), nil
	}

	p := models.Prompt{
		ID:             sp.ID,
		Title:          sp.Title,
		CurrentVersion: sp.CurrentVersion,
		Modality:       sp.Modality,
		Theme:          sp.Theme,
		Tags:           sp.Tags,
		Notes:          sp.Notes,
		CreatedAt:      created,
		Versions:       make([]models.PromptVersion, 0, len(sp.Versions)),
	}
	for _, sv := range sp.Versions {
		v := models.PromptVersion{
			Version:    sv.Version,
			PromptText: sv.PromptText,
			CreatedAt:  stamp(sv.CreatedAt, created),
		}
		if sv.TestResults != nil {
			v.TestResults = make([]models.TestResult, 0, len(sv.TestResults))
		}
		for _, sr := range sv.TestResults {
			v.TestResults = append(v.TestResults, models.TestResult{
				ID:         sr.ID,
				Output:     sr.Output,
				CreatedAt:  stamp(sr.CreatedAt, v.CreatedAt),
				Evaluation: sr.Evaluation,
			})
		}
		p.Versions = append(p.Versions, v)
	}
	return p, nil
}

func stamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, ok := models.ParseTimestamp(s); ok {
		return t
	}
	return fallback
}

// normalize fills the zero values older writers left out and repoints a
// dangling currentVersion at the newest version.
func normalize(p models.Prompt) models.Prompt {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Modality == "" {
		p.Modality = models.ModalityText
	}
	for i := range p.Versions {
		if p.Versions[i].TestResults == nil {
			p.Versions[i].TestResults = []models.TestResult{}
		}
	}
	if prompt.ActiveVersion(&p) == nil {
		p.CurrentVersion = prompt.NextVersionNumber(&p) - 1
	}
	return p
}

// EncodeCollection serialises the collection as indented JSON in the
// versioned shape. This is both the persisted and the export format.
func EncodeCollection(prompts []models.Prompt) ([]byte, error) {
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	data, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// ExportFilename names an export file after the day it was taken.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("ai-prompts-export-%s.json", now.Format("2006-01-02"))
}
