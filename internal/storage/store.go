package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrNoCollection is returned by Load when nothing has been saved yet.
var ErrNoCollection = errors.New("no stored collection")

// Mutation computes the next collection from the stored one. data is nil
// when nothing is stored. Returning nil leaves the store untouched. A
// Mutation may run more than once if a concurrent writer wins a race.
type Mutation func(data []byte) ([]byte, error)

// Store persists the whole prompt collection as one opaque blob. Update is an
// atomic read-modify-write, also across processes sharing the backend.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Update(ctx context.Context, fn Mutation) error
}

// FileStore keeps the collection in a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCollection
	}
	if err != nil {
		return nil, fmt.Errorf("read collection file: %w", err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never see a partial write.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prompts-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace collection file: %w", err)
	}
	return nil
}

const fileLockRetry = 20 * time.Millisecond

// Update holds an exclusive lock on <path>.lock while it reads, mutates and
// replaces the file.
func (s *FileStore) Update(ctx context.Context, fn Mutation) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	if _, err := lock.TryLockContext(ctx, fileLockRetry); err != nil {
		return fmt.Errorf("lock collection file: %w", err)
	}
	defer lock.Unlock()

	data, err := s.Load(ctx)
	if errors.Is(err, ErrNoCollection) {
		data = nil
	} else if err != nil {
		return err
	}
	out, err := fn(data)
	if err != nil || out == nil {
		return err
	}
	return s.Save(ctx, out)
}

// MemoryStore is an in-process Store, used by tests and the CLI dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func NewMemoryStore(initial []byte) *MemoryStore {
	return &MemoryStore{data: initial}
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoCollection
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

func (s *MemoryStore) Update(_ context.Context, fn Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur []byte
	if s.data != nil {
		cur = append([]byte{}, s.data...)
	}
	out, err := fn(cur)
	if err != nil || out == nil {
		return err
	}
	s.data = append([]byte(nil), out...)
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
