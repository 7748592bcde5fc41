package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nikhilbhutani/promptlibrary/internal/csvimport"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
)

// Import appends the accepted rows of a CSV file to the end of the
// collection. Nothing is written when the file is rejected as a whole.
func (l *Library) Import(ctx context.Context, r io.Reader) (*csvimport.Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var report *csvimport.Report
	err = l.write(ctx, func(prompts []models.Prompt) ([]models.Prompt, error) {
		existing := make(map[string]bool, len(prompts))
		for _, p := range prompts {
			existing[p.ID] = true
		}

		rep, err := csvimport.Parse(bytes.NewReader(raw), func(id string) bool { return existing[id] }, l.now())
		if err != nil {
			return nil, err
		}
		report = rep
		if len(rep.Prompts) == 0 {
			return nil, nil
		}
		next := make([]models.Prompt, 0, len(prompts)+len(rep.Prompts))
		next = append(next, prompts...)
		return append(next, rep.Prompts...), nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("prompts imported",
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"malformed", report.Malformed,
		"missing_id", report.MissingID,
		"invalid_modality", report.InvalidModality,
	)
	return report, nil
}

// Export serialises the whole collection and names the download.
func (l *Library) Export(ctx context.Context) ([]byte, string, error) {
	prompts, err := l.List(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := storage.EncodeCollection(prompts)
	if err != nil {
		return nil, "", err
	}
	return data, storage.ExportFilename(l.now()), nil
}
