package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		mime     string
		expected Class
	}{
		{"pdf by mime", "report", "application/pdf", ClassPaginated},
		{"pdf by extension", "Report.PDF", "", ClassPaginated},
		{"csv by mime with params", "data", "text/csv; charset=utf-8", ClassTabular},
		{"csv by extension", "people.csv", "text/plain", ClassTabular},
		{"markdown", "README.md", "text/markdown", ClassCode},
		{"typescript", "App.tsx", "", ClassCode},
		{"go source", "main.go", "", ClassCode},
		{"plain text", "notes.txt", "text/plain", ClassProse},
		{"no extension", "LICENSE", "", ClassProse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.file, tt.mime))
		})
	}
}

func TestClass_TextClass(t *testing.T) {
	assert.Equal(t, ClassProse, ClassPaginated.TextClass())
	assert.Equal(t, ClassCode, ClassCode.TextClass())
	assert.Equal(t, ClassTabular, ClassTabular.TextClass())
}

func TestChunk_WithEmbedding(t *testing.T) {
	c := NewChunk("doc", 3, "some chunk text")
	assert.Equal(t, "doc-3", c.ID)
	assert.False(t, c.HasEmbedding())

	vec := []float32{0.1, 0.2}
	embedded := c.WithEmbedding(vec)
	require.True(t, embedded.HasEmbedding())
	assert.Equal(t, 2, embedded.Dimension())
	assert.False(t, c.HasEmbedding(), "original chunk must not change")

	vec[0] = 9
	assert.Equal(t, float32(0.1), embedded.Embedding[0], "embedding must be copied")

	again := embedded.WithEmbedding([]float32{1, 2, 3})
	assert.Equal(t, 2, again.Dimension(), "an attached embedding is never replaced")
}

func TestDocument_Lifecycle(t *testing.T) {
	d := New("id-1", "notes.csv", "", 42)
	assert.Equal(t, StatusIndexing, d.Status)
	assert.Equal(t, ClassTabular, d.Class)

	chunks := []Chunk{
		NewChunk("id-1", 0, "first chunk").WithEmbedding([]float32{1}),
		NewChunk("id-1", 1, "second chunk"),
	}
	d.MarkReady(chunks)
	assert.Equal(t, StatusReady, d.Status)
	assert.Len(t, d.EmbeddedChunks(), 1)

	d.MarkError()
	assert.Equal(t, StatusError, d.Status)
	assert.True(t, d.Status.Valid())
	assert.False(t, Status("done").Valid())
}

func TestRetrievalConfig_Defaults(t *testing.T) {
	var cfg RetrievalConfig
	cfg.ApplyDefaults()

	want := DefaultRetrievalConfig()
	want.SimilarityThreshold = 0
	want.OverlapPieces = 0
	assert.Equal(t, want, cfg, "zero threshold and overlap are valid choices")
	require.NoError(t, cfg.Validate())

	cfg = DefaultRetrievalConfig()
	cfg.OverlapPieces = -1
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultOverlapPieces, cfg.OverlapPieces)
	assert.Equal(t, DefaultSimilarityThreshold, cfg.SimilarityThreshold)
}

func TestRetrievalConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RetrievalConfig)
	}{
		{"non-positive target", func(c *RetrievalConfig) { c.TargetChunkSize = -1 }},
		{"min above target", func(c *RetrievalConfig) { c.MinChunkLength = 5000 }},
		{"no chunk cap", func(c *RetrievalConfig) { c.MaxChunksPerDocument = -3 }},
		{"threshold out of range", func(c *RetrievalConfig) { c.SimilarityThreshold = 1.5 }},
		{"zero top k", func(c *RetrievalConfig) { c.TopK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRetrievalConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
