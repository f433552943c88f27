package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
	"github.com/fyrsmithlabs/docrag/internal/store"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// keywordEmbedder maps text onto counts of a few fixed terms.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "revenue")),
		float32(strings.Count(lower, "security")),
		0.1,
	}, nil
}
func (keywordEmbedder) Name() string   { return "keyword" }
func (keywordEmbedder) Dimension() int { return 3 }
func (keywordEmbedder) Close() error   { return nil }

type fixedProvider struct{}

func (fixedProvider) Name() string { return "fixed" }

func (fixedProvider) Complete(_ context.Context, req generation.Request) (string, error) {
	return "Revenue grew twelve percent.", nil
}

type fixedExtractor struct{ err error }

func (f fixedExtractor) Extract(context.Context, []string) ([]extraction.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []extraction.Entity{
		{ID: "e1", Name: "Acme Corp", Type: extraction.TypeConcept, Description: "the company"},
	}, nil
}

func newTestApp(t *testing.T, extractErr error) *app.App {
	t.Helper()
	st := store.NewMemory()
	cfg := config.Default()
	cfg.Ingest.RedactSecrets = false

	a, err := app.Assemble(app.Components{
		Store:     st,
		Embedder:  keywordEmbedder{},
		Index:     vectorstore.NewExhaustive(st),
		Generator: generation.NewWithProvider(fixedProvider{}, generation.Config{}, nil),
		Entities:  fixedExtractor{err: extractErr},
	}, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewServer(&Config{Name: "test", Version: "0.0.1", Root: root, Logger: zap.NewNop()}, newTestApp(t, nil))
	require.NoError(t, err)
	return s, root
}

func TestNewServer(t *testing.T) {
	t.Run("requires app", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app is required")
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		s, err := NewServer(nil, newTestApp(t, nil))
		require.NoError(t, err)
		assert.Equal(t, "", s.root)
		assert.NotNil(t, s.logger)
	})

	t.Run("registers every tool", func(t *testing.T) {
		s, _ := newTestServer(t)
		assert.Equal(t, []string{
			"ask", "delete_document", "extract_entities", "ingest_file", "ingest_text",
			"list_documents", "list_entities", "list_personas", "search", "tool_list", "tool_search",
		}, toolNames(s.Registry().List(nil)))
		assert.Equal(t, []string{
			"delete_document", "extract_entities", "list_entities", "list_personas",
		}, toolNames(s.Registry().List(Deferred)))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "docrag", cfg.Name)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.NotNil(t, cfg.Logger)
}

func TestDocumentTools(t *testing.T) {
	ctx := context.Background()
	s, root := newTestServer(t)

	path := filepath.Join(root, "q3.txt")
	require.NoError(t, os.WriteFile(path, []byte("Quarterly revenue grew by twelve percent."), 0o600))

	doc, summary, err := s.ingestFile(ctx, ingestFileInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "q3.txt", doc.Name)
	assert.Equal(t, "ready", doc.Status)
	assert.Equal(t, 1, doc.Chunks)
	assert.Contains(t, summary, "q3.txt")

	_, _, err = s.ingestFile(ctx, ingestFileInput{Path: "/etc/passwd"})
	assert.ErrorIs(t, err, sanitize.ErrPathTraversal)

	_, _, err = s.ingestFile(ctx, ingestFileInput{Path: root})
	assert.ErrorIs(t, err, sanitize.ErrNotRegular)

	text, _, err := s.ingestText(ctx, ingestTextInput{Name: "notes.md", Content: "# Security\nRotate keys every quarter."})
	require.NoError(t, err)
	assert.Equal(t, "notes.md", text.Name)

	_, _, err = s.ingestText(ctx, ingestTextInput{Name: "empty.md", Content: "  "})
	assert.ErrorIs(t, err, app.ErrEmptyInput)

	_, _, err = s.ingestText(ctx, ingestTextInput{Content: "no name"})
	assert.Error(t, err)

	list, summary, err := s.listDocuments(ctx, listDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "2 documents", summary)

	deleted, _, err := s.deleteDocument(ctx, deleteDocumentInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, deleted.Deleted)

	_, _, err = s.deleteDocument(ctx, deleteDocumentInput{DocumentID: doc.ID})
	assert.ErrorIs(t, err, app.ErrNotFound)

	_, _, err = s.deleteDocument(ctx, deleteDocumentInput{})
	assert.Error(t, err)
}

func TestRetrievalTools(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	_, _, err := s.ingestText(ctx, ingestTextInput{Name: "q3.txt", Content: "Quarterly revenue grew by twelve percent."})
	require.NoError(t, err)

	out, text, err := s.search(ctx, searchInput{Query: "revenue"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "q3.txt", out.Results[0].Source)
	assert.Greater(t, out.Results[0].Score, 0.35)
	assert.Contains(t, text, "[1] q3.txt")

	none, text, err := s.search(ctx, searchInput{Query: "security"})
	require.NoError(t, err)
	assert.Zero(t, none.Count)
	assert.NotNil(t, none.Results)
	assert.Equal(t, "No relevant passages found", text)

	_, _, err = s.search(ctx, searchInput{Query: " "})
	assert.ErrorIs(t, err, app.ErrEmptyInput)

	answer, text, err := s.ask(ctx, askInput{Question: "How did revenue change?", Persona: "analyst"})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew twelve percent.", answer.Answer)
	assert.Equal(t, answer.Answer, text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, []string{answer.Sources[0].ChunkID}, answer.Citations)

	personas, text, err := s.listPersonas(ctx, listPersonasInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, personas.Personas)
	assert.Contains(t, text, "analyst")
}

func TestEntityTools(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	_, _, err := s.ingestText(ctx, ingestTextInput{Name: "q3.txt", Content: "Acme Corp revenue grew."})
	require.NoError(t, err)

	out, text, err := s.extractEntities(ctx, extractEntitiesInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Acme Corp", out.Entities[0].Name)
	assert.Equal(t, "CONCEPT", out.Entities[0].Type)
	assert.Equal(t, "Extracted 1 entities", text)

	listed, _, err := s.listEntities(ctx, listEntitiesInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, listed.Count)

	_, _, err = s.extractEntities(ctx, extractEntitiesInput{DocumentIDs: []string{"missing"}})
	assert.ErrorIs(t, err, app.ErrNotFound)

	failing, err := NewServer(nil, newTestApp(t, errors.New("status 500")))
	require.NoError(t, err)
	_, _, err = failing.ingestText(ctx, ingestTextInput{Name: "a.txt", Content: "Acme Corp opened a new office."})
	require.NoError(t, err)
	out, text, err = failing.extractEntities(ctx, extractEntitiesInput{})
	require.NoError(t, err, "provider failures yield no entities")
	assert.Zero(t, out.Count)
	assert.Equal(t, "Extracted 0 entities", text)
}

func TestDiscoveryTools(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	found, text, err := s.toolSearch(ctx, toolSearchInput{Query: "entities"})
	require.NoError(t, err)
	assert.Equal(t, 11, found.TotalTools)
	require.NotZero(t, found.Count)
	assert.Equal(t, "extract_entities", found.Results[0].Name)
	assert.Contains(t, text, "extract_entities")

	limited, _, err := s.toolSearch(ctx, toolSearchInput{Query: ".", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Count)

	none, text, err := s.toolSearch(ctx, toolSearchInput{Query: "checkpoint"})
	require.NoError(t, err)
	assert.Zero(t, none.Count)
	assert.Contains(t, text, "No tools found")

	_, _, err = s.toolSearch(ctx, toolSearchInput{})
	assert.Error(t, err)

	all, _, err := s.toolList(ctx, toolListInput{})
	require.NoError(t, err)
	assert.Equal(t, 11, all.Count)

	docs, _, err := s.toolList(ctx, toolListInput{Category: string(CategoryDocuments)})
	require.NoError(t, err)
	assert.Equal(t, 4, docs.Count)

	deferred, _, err := s.toolList(ctx, toolListInput{DeferredOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4, deferred.Count)
}

func TestServer_Session(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestServer(t)

	st, ct := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, st)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 11)
	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, tool.Name)
		if tool.Name == "delete_document" {
			assert.Equal(t, true, tool.Meta["defer_loading"])
		}
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "ingest_text",
		Arguments: map[string]any{"name": "q3.txt", "content": "Quarterly revenue grew by twelve percent."},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "Ingested q3.txt")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": "revenue"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out searchOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "q3.txt", out.Results[0].Source)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "delete_document",
		Arguments: map[string]any{"document_id": "missing"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
