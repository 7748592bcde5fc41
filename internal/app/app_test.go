package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptlibrary/internal/config"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Backend: backend, SeedDemo: true},
		LLM:    config.LLMConfig{DefaultProvider: "openai"},
		Search: config.SearchConfig{Ranker: "llm"},
	}
}

func TestNewMemoryBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig("memory"))
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Library.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n, "demo prompts seeded")

	checks := a.Checks()
	assert.Len(t, checks, 1)
	assert.NoError(t, checks["store"](context.Background()))
	assert.Nil(t, a.Redis)
	assert.False(t, a.Gateway.Configured())
}

func TestNewFileBackendPersists(t *testing.T) {
	cfg := testConfig("file")
	cfg.Store.Path = filepath.Join(t.TempDir(), "prompts.json")
	cfg.Store.SeedDemo = false

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, a.Checks()["store"](context.Background()), "missing file is ready")

	_, err = a.Library.Import(context.Background(), strings.NewReader("id,title,promptText,modality,theme,tags,notes,createdAt\nx1,T,hello,Text,,,,\n"))
	require.NoError(t, err)
	a.Close()

	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()
	p, err := b.Library.Get(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, "T", p.Title)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), testConfig("mongo"))
	assert.Error(t, err)
}
