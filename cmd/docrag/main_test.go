package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/store"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// termEmbedder maps text onto counts of a few fixed terms.
type termEmbedder struct{}

func (termEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "revenue")),
		float32(strings.Count(lower, "security")),
		0.1,
	}, nil
}
func (termEmbedder) Name() string   { return "term" }
func (termEmbedder) Dimension() int { return 3 }
func (termEmbedder) Close() error   { return nil }

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Complete(context.Context, generation.Request) (string, error) {
	return "Revenue grew twelve percent.", nil
}

// useTestApp points every command at an in-memory App sharing one store.
func useTestApp(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	st := store.NewMemory()
	orig := newApp
	newApp = func(_ context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error) {
		return app.Assemble(app.Components{
			Store:     st,
			Embedder:  termEmbedder{},
			Index:     vectorstore.NewExhaustive(st),
			Generator: generation.NewWithProvider(echoProvider{}, generation.Config{}, logger),
		}, cfg, logger)
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, persona, logLevel, extractDocs = false, "", "warn", nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRootCmd_Commands(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{
		"ask", "chat", "docs", "entities", "extract", "health", "ingest",
		"init", "mcp", "personas", "search", "watch",
	} {
		assert.Contains(t, names, want)
	}

	for _, cmd := range rootCmd.Commands() {
		assert.NotEmpty(t, cmd.Short, cmd.Name())
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "report.md"), "# Report")
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "image.png"), "png")
	writeFile(t, filepath.Join(dir, ".notes.md"), "hidden")
	writeFile(t, filepath.Join(dir, "sub", "deep.txt"), "nested")
	writeFile(t, filepath.Join(dir, "drafts", "wip.md"), "ignored")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(dir, ".docragignore"), "drafts/\n")
	explicit := filepath.Join(t.TempDir(), "data.bin")
	writeFile(t, explicit, "explicit files are always kept")

	files, err := collectFiles([]string{dir, explicit}, []string{"md", ".go", "TXT"})
	require.NoError(t, err)
	sort.Strings(files)

	want := []string{
		explicit,
		filepath.Join(dir, "main.go"),
		filepath.Join(dir, "report.md"),
		filepath.Join(dir, "sub", "deep.txt"),
	}
	sort.Strings(want)
	assert.Equal(t, want, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")}, []string{"md"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestSearchAsk(t *testing.T) {
	useTestApp(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "q3.txt"), "Quarterly revenue grew by twelve percent in the third quarter.")
	writeFile(t, filepath.Join(dir, "policy.md"), "Security keys are rotated every ninety days by the platform team.")

	out, err := execute(t, "ingest", "--jobs", "2", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "q3.txt")
	assert.Contains(t, out, "policy.md")

	out, err = execute(t, "--json", "search", "revenue")
	require.NoError(t, err, out)
	var hits []retrieval.Scored
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "q3.txt", hits[0].Chunk.Source)
	assert.Nil(t, hits[0].Chunk.Embedding)

	out, err = execute(t, "search", "unrelated", "words")
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant passages found.")

	out, err = execute(t, "ask", "--persona", "tutor", "How", "did", "revenue", "change?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Revenue grew twelve percent.")
	assert.Contains(t, out, "[1] q3.txt")

	out, err = execute(t, "--json", "docs", "list")
	require.NoError(t, err, out)
	var docs []*document.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)

	out, err = execute(t, "docs", "rm", docs[0].ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed "+docs[0].ID)

	_, err = execute(t, "docs", "rm", docs[0].ID)
	assert.Error(t, err)

	out, err = execute(t, "docs", "clear")
	require.NoError(t, err, out)
	out, err = execute(t, "docs", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "policy.md")
}

func TestIngest_NoSupportedFiles(t *testing.T) {
	useTestApp(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "image.png"), "png")

	_, err := execute(t, "ingest", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported files")
}

func TestPersonasAndEntities(t *testing.T) {
	useTestApp(t)

	out, err := execute(t, "personas")
	require.NoError(t, err)
	assert.Contains(t, out, "analyst")

	// Without a structured-output provider extraction yields nothing.
	out, err = execute(t, "extract")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Extracted 0 entities")

	out, err = execute(t, "entities")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
}
