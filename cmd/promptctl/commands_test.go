package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, seed bool) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", filepath.Join(dir, "prompts.json"))
	t.Setenv("SEARCH_CACHE_TTL", "0")
	t.Setenv("LOG_LEVEL", "error")
	if seed {
		t.Setenv("STORE_SEED_DEMO", "true")
	} else {
		t.Setenv("STORE_SEED_DEMO", "false")
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListAndShow(t *testing.T) {
	setupStore(t, true)

	out, err := run(t, "list", "--modality", "Code")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2\tv1\tCode\t"), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out, err = run(t, "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"currentVersion": 1`)

	_, err = run(t, "show", "404")
	assert.Error(t, err)
}

func TestVarsAndCompile(t *testing.T) {
	dir := setupStore(t, false)
	csv := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(csv, []byte(
		"id,title,promptText,modality,theme,tags,notes,createdAt\n"+
			"p1,Poem,Write a [style] poem about [topic],Text,,,,\n"), 0o644))

	out, err := run(t, "import", csv)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1, skipped 0")

	out, err = run(t, "vars", "p1")
	require.NoError(t, err)
	assert.Equal(t, "style\ntopic\n", out)

	out, err = run(t, "vars", "--text", "Hi [name]")
	require.NoError(t, err)
	assert.Equal(t, "name\n", out)

	out, err = run(t, "compile", "p1", "--set", "style=haiku", "--set", "topic=rain")
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku poem about rain\n", out)

	_, err = run(t, "compile", "p1", "--set", "style=haiku")
	assert.ErrorContains(t, err, "topic")

	_, err = run(t, "compile", "p1", "--set", "novalue")
	assert.Error(t, err)
}

func TestExportAndStats(t *testing.T) {
	dir := setupStore(t, true)
	dest := filepath.Join(dir, "out.json")

	_, err := run(t, "export", "-o", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"))

	out, err := run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalPrompts": 5`)
}
