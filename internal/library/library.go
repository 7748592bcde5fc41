// Package library owns the prompt collection. Every read returns copies and
// every write re-reads the latest stored state, applies a pure transformation
// from package prompt and persists the whole collection before it becomes
// visible.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
)

type Library struct {
	mu       sync.Mutex
	store    storage.Store
	ids      IDGenerator
	now      func() time.Time
	collab   Collaborators
	seedDemo bool

	// in-flight runs and evaluations, keyed by runKey/evalKey
	inflight map[string]bool
}

type Option func(*Library)

func WithCollaborators(c Collaborators) Option { return func(l *Library) { l.collab = c } }
func WithIDGenerator(g IDGenerator) Option     { return func(l *Library) { l.ids = g } }
func WithClock(now func() time.Time) Option    { return func(l *Library) { l.now = now } }

// WithDemoSeed makes the first load of an empty store start from the demo
// collection instead of an empty one.
func WithDemoSeed(seed bool) Option { return func(l *Library) { l.seedDemo = seed } }

func New(store storage.Store, opts ...Option) *Library {
	l := &Library{
		store:    store,
		ids:      UUIDGenerator{},
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Draft is the editable part of a prompt as submitted by a user.
type Draft struct {
	Title      string          `json:"title"`
	PromptText string          `json:"promptText"`
	Theme      string          `json:"theme"`
	Tags       []string        `json:"tags"`
	Notes      string          `json:"notes"`
	Modality   models.Modality `json:"modality"`
}

func (d Draft) validate() (prompt.Metadata, error) {
	if strings.TrimSpace(d.Title) == "" {
		return prompt.Metadata{}, fmt.Errorf("%w: title is required", prompt.ErrValidation)
	}
	if strings.TrimSpace(d.PromptText) == "" {
		return prompt.Metadata{}, fmt.Errorf("%w: prompt text is required", prompt.ErrValidation)
	}
	modality := d.Modality
	if modality == "" {
		modality = models.ModalityText
	}
	if _, err := models.ParseModality(string(modality)); err != nil {
		return prompt.Metadata{}, fmt.Errorf("%w: %w", prompt.ErrValidation, err)
	}

	tags := []string{}
	for _, t := range d.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return prompt.Metadata{
		Title:    strings.TrimSpace(d.Title),
		Theme:    strings.TrimSpace(d.Theme),
		Tags:     tags,
		Notes:    d.Notes,
		Modality: modality,
	}, nil
}

// Load reads the stored collection, migrating legacy records, and seeds the
// store when nothing has been saved yet. It returns the number of prompts.
func (l *Library) Load(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.current(ctx)
	if err != nil {
		return 0, err
	}
	return len(prompts), nil
}

func (l *Library) List(ctx context.Context) ([]models.Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.current(ctx)
	if err != nil {
		return nil, err
	}
	return cloneAll(prompts), nil
}

func (l *Library) Get(ctx context.Context, id string) (models.Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prompts, err := l.current(ctx)
	if err != nil {
		return models.Prompt{}, err
	}
	i := indexOf(prompts, id)
	if i < 0 {
		return models.Prompt{}, notFound(id)
	}
	return prompts[i].Clone(), nil
}

// Create adds a new prompt at the front of the collection.
func (l *Library) Create(ctx context.Context, d Draft) (models.Prompt, error) {
	meta, err := d.validate()
	if err != nil {
		return models.Prompt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var p models.Prompt
	err = l.write(ctx, func(prompts []models.Prompt) ([]models.Prompt, error) {
		p = prompt.NewPrompt(l.ids.NewID(), d.PromptText, meta, l.now())
		return append([]models.Prompt{p}, prompts...), nil
	})
	if err != nil {
		return models.Prompt{}, err
	}

	slog.Info("prompt created", "prompt_id", p.ID, "modality", p.Modality)
	return p.Clone(), nil
}

// Update saves an edit. A new version is created only when the text changed.
func (l *Library) Update(ctx context.Context, id string, d Draft) (models.Prompt, error) {
	meta, err := d.validate()
	if err != nil {
		return models.Prompt{}, err
	}

	return l.modify(ctx, id, func(p models.Prompt) (models.Prompt, error) {
		return prompt.ApplyEdit(p, d.PromptText, meta, l.now()), nil
	})
}

func (l *Library) SetActiveVersion(ctx context.Context, id string, version int) (models.Prompt, error) {
	return l.modify(ctx, id, func(p models.Prompt) (models.Prompt, error) {
		return prompt.SetActiveVersion(p, version)
	})
}

func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.write(ctx, func(prompts []models.Prompt) ([]models.Prompt, error) {
		i := indexOf(prompts, id)
		if i < 0 {
			return nil, notFound(id)
		}
		next := make([]models.Prompt, 0, len(prompts)-1)
		next = append(next, prompts[:i]...)
		return append(next, prompts[i+1:]...), nil
	})
	if err != nil {
		return err
	}

	slog.Info("prompt deleted", "prompt_id", id)
	return nil
}

// modify replaces prompt id with fn applied to its latest state.
func (l *Library) modify(ctx context.Context, id string, fn func(models.Prompt) (models.Prompt, error)) (models.Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var updated models.Prompt
	err := l.write(ctx, func(prompts []models.Prompt) ([]models.Prompt, error) {
		i := indexOf(prompts, id)
		if i < 0 {
			return nil, notFound(id)
		}
		u, err := fn(prompts[i])
		if err != nil {
			return nil, err
		}
		next := make([]models.Prompt, len(prompts))
		copy(next, prompts)
		next[i] = u
		updated = u
		return next, nil
	})
	if err != nil {
		return models.Prompt{}, err
	}
	return updated.Clone(), nil
}

// current decodes the stored collection. Callers must hold l.mu.
func (l *Library) current(ctx context.Context) ([]models.Prompt, error) {
	data, err := l.store.Load(ctx)
	if errors.Is(err, storage.ErrNoCollection) {
		var prompts []models.Prompt
		err := l.write(ctx, func(latest []models.Prompt) ([]models.Prompt, error) {
			prompts = latest
			return nil, nil
		})
		return prompts, err
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	prompts, err := storage.DecodeCollection(data, l.now())
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return prompts, nil
}

// write applies fn to the latest stored collection and persists its result
// in one atomic store update, so writers in other processes are not lost. An
// empty store is seeded first. fn returning nil writes nothing; fn may run
// more than once. Callers must hold l.mu.
func (l *Library) write(ctx context.Context, fn func([]models.Prompt) ([]models.Prompt, error)) error {
	var fnErr error
	seeded := false
	err := l.store.Update(ctx, func(data []byte) ([]byte, error) {
		var prompts []models.Prompt
		seeded = data == nil
		if seeded {
			prompts = l.seedPrompts()
		} else {
			decoded, err := storage.DecodeCollection(data, l.now())
			if err != nil {
				fnErr = fmt.Errorf("load collection: %w", err)
				return nil, fnErr
			}
			prompts = decoded
		}

		next, err := fn(prompts)
		if err != nil {
			fnErr = err
			return nil, err
		}
		if next == nil {
			if !seeded {
				return nil, nil
			}
			next = prompts
		}
		out, err := storage.EncodeCollection(next)
		if err != nil {
			fnErr = fmt.Errorf("encode collection: %w", err)
			return nil, fnErr
		}
		return out, nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	if seeded {
		slog.Info("initialised prompt collection", "demo", l.seedDemo)
	}
	return nil
}

func (l *Library) seedPrompts() []models.Prompt {
	if l.seedDemo {
		return DemoPrompts()
	}
	return []models.Prompt{}
}

func indexOf(prompts []models.Prompt, id string) int {
	for i := range prompts {
		if prompts[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(prompts []models.Prompt) []models.Prompt {
	out := make([]models.Prompt, len(prompts))
	for i := range prompts {
		out[i] = prompts[i].Clone()
	}
	return out
}

func notFound(id string) error {
	return fmt.Errorf("%w: prompt %s", prompt.ErrNotFound, id)
}
