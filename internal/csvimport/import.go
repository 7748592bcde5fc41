// Package csvimport reads prompts from the flat CSV layout
// id,title,promptText,modality,theme,tags,notes,createdAt.
//
// Each accepted row becomes a new prompt with a single version. Bad rows are
// skipped and counted; only a bad header or an empty file aborts the import.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

// Header is the exact header row an import file must start with.
var Header = []string{"id", "title", "promptText", "modality", "theme", "tags", "notes", "createdAt"}

const (
	colID = iota
	colTitle
	colPromptText
	colModality
	colTheme
	colTags
	colNotes
	colCreatedAt
)

// Report summarises one import.
type Report struct {
	Prompts         []models.Prompt `json:"-"`
	Imported        int             `json:"imported"`
	Duplicates      int             `json:"duplicates"`
	Malformed       int             `json:"malformed"`
	MissingID       int             `json:"missingId"`
	InvalidModality int             `json:"invalidModality"`
}

// Skipped is the total number of rejected rows.
func (r Report) Skipped() int {
	return r.Duplicates + r.Malformed + r.MissingID + r.InvalidModality
}

// Parse reads an import file. exists reports ids already present in the
// collection; ids repeated within the file are treated the same way.
func Parse(r io.Reader, exists func(id string) bool, now time.Time) (*Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV file is empty or has only a header", prompt.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV header: %w", prompt.ErrValidation, err)
	}
	if !headerMatches(header) {
		return nil, fmt.Errorf("%w: invalid CSV header, expected: %s", prompt.ErrValidation, strings.Join(Header, ","))
	}

	report := &Report{}
	seen := make(map[string]bool)
	rows := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows++
			report.Malformed++
			slog.Warn("skipping unparseable CSV row", "line", parseErr.Line, "error", parseErr.Err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		if isBlank(record) {
			continue
		}
		rows++

		p, reason := buildPrompt(record, now)
		switch reason {
		case "":
		case rejectMalformed:
			report.Malformed++
			slog.Warn("skipping malformed CSV row", "fields", len(record))
			continue
		case rejectMissingID:
			report.MissingID++
			continue
		case rejectModality:
			report.InvalidModality++
			slog.Warn("skipping CSV row with invalid modality", "id", p.ID, "modality", record[colModality])
			continue
		}

		if seen[p.ID] || (exists != nil && exists(p.ID)) {
			report.Duplicates++
			continue
		}
		seen[p.ID] = true
		report.Prompts = append(report.Prompts, p)
	}

	if rows == 0 {
		return nil, fmt.Errorf("%w: CSV file is empty or has only a header", prompt.ErrValidation)
	}

	report.Imported = len(report.Prompts)
	return report, nil
}

type rejectReason string

const (
	rejectMalformed rejectReason = "malformed"
	rejectMissingID rejectReason = "missing_id"
	rejectModality  rejectReason = "invalid_modality"
)

func buildPrompt(record []string, now time.Time) (models.Prompt, rejectReason) {
	if len(record) != len(Header) {
		return models.Prompt{}, rejectMalformed
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	id := record[colID]
	if id == "" {
		return models.Prompt{}, rejectMissingID
	}

	modality, err := models.ParseModality(record[colModality])
	if err != nil {
		return models.Prompt{ID: id}, rejectModality
	}

	meta := prompt.Metadata{
		Title:    record[colTitle],
		Theme:    record[colTheme],
		Tags:     SplitTags(record[colTags]),
		Notes:    record[colNotes],
		Modality: modality,
	}
	return prompt.NewPrompt(id, record[colPromptText], meta, parseCreatedAt(id, record[colCreatedAt], now)), ""
}

// SplitTags splits a comma separated tag list, trimming each entry and
// dropping empty ones.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseCreatedAt(id, s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	if t, ok := models.ParseTimestamp(s); ok {
		return t
	}
	slog.Warn("unparseable createdAt in CSV row, using import time", "id", id, "created_at", s)
	return now
}

func headerMatches(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h != Header[i] {
			return false
		}
	}
	return true
}

func isBlank(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}
