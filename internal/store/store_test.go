package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
)

// implementations returns a fresh store of every kind.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "docrag.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		DriverSQLite: sqlite,
		DriverMemory: NewMemory(),
	}
}

func sampleDocument(id, name string, created time.Time) *document.Document {
	doc := document.New(id, name, "text/plain", 42)
	doc.CreatedAt = created
	doc.CleanedText = "alpha beta"
	doc.DroppedChunks = 2

	c0 := document.NewChunk(id, 0, "alpha").WithEmbedding([]float32{1, 0, 0.5})
	c0.Source = name
	c1 := document.NewChunk(id, 1, "beta")
	c1.Source = name
	doc.MarkReady([]document.Chunk{c0, c1})
	return doc
}

func TestStore_Documents(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			a := sampleDocument("doc-a", "a.txt", base)
			b := sampleDocument("doc-b", "b.txt", base.Add(time.Minute))
			require.NoError(t, s.SaveDocuments(ctx, []*document.Document{b, a}))

			got, err := s.GetDocument(ctx, "doc-a")
			require.NoError(t, err)
			assert.Equal(t, "a.txt", got.Name)
			assert.Equal(t, document.StatusReady, got.Status)
			assert.Equal(t, document.ClassProse, got.Class)
			assert.Equal(t, 2, got.DroppedChunks)
			assert.True(t, base.Equal(got.CreatedAt))
			require.Len(t, got.Chunks, 2)
			assert.Equal(t, []float32{1, 0, 0.5}, got.Chunks[0].Embedding)
			assert.Nil(t, got.Chunks[1].Embedding)
			assert.Equal(t, "a.txt", got.Chunks[1].Source)
			assert.Nil(t, got.X)

			list, err := s.ListDocuments(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "doc-a", list[0].ID)
			assert.Len(t, list[1].Chunks, 2)

			chunks, err := s.Chunks(ctx)
			require.NoError(t, err)
			require.Len(t, chunks, 4)
			assert.Equal(t, "doc-a-0", chunks[0].ID)
			assert.Equal(t, "doc-b-1", chunks[3].ID)

			require.NoError(t, s.UpdateDocumentPosition(ctx, "doc-b", 12.5, -3))
			got, err = s.GetDocument(ctx, "doc-b")
			require.NoError(t, err)
			require.NotNil(t, got.X)
			assert.Equal(t, 12.5, *got.X)
			assert.Equal(t, -3.0, *got.Y)

			// Re-ingesting keeps the position.
			require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-b", "b-v2.txt", base.Add(time.Minute))))
			got, err = s.GetDocument(ctx, "doc-b")
			require.NoError(t, err)
			assert.Equal(t, "b-v2.txt", got.Name)
			require.NotNil(t, got.X)
			assert.Equal(t, 12.5, *got.X)
			assert.Equal(t, -3.0, *got.Y)

			// Saving again replaces the chunk set.
			a.MarkReady(a.Chunks[:1])
			require.NoError(t, s.SaveDocument(ctx, a))
			got, err = s.GetDocument(ctx, "doc-a")
			require.NoError(t, err)
			assert.Len(t, got.Chunks, 1)

			require.NoError(t, s.DeleteDocument(ctx, "doc-a"))
			_, err = s.GetDocument(ctx, "doc-a")
			assert.ErrorIs(t, err, ErrNotFound)
			chunks, err = s.Chunks(ctx)
			require.NoError(t, err)
			assert.Len(t, chunks, 2)

			assert.ErrorIs(t, s.DeleteDocument(ctx, "doc-a"), ErrNotFound)
			assert.ErrorIs(t, s.UpdateDocumentPosition(ctx, "missing", 1, 1), ErrNotFound)

			require.NoError(t, s.DeleteAllDocuments(ctx))
			list, err = s.ListDocuments(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
			chunks, err = s.Chunks(ctx)
			require.NoError(t, err)
			assert.Empty(t, chunks)
		})
	}
}

func TestStore_Turns(t *testing.T) {
	ctx := context.Background()

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			q := conversation.NewTurn(conversation.RoleUser, "what is the vacation policy?")
			a := conversation.NewTurn(conversation.RoleModel, "25 days.", "doc-a-0", "doc-b-3")
			require.NoError(t, s.AddTurn(ctx, q))
			require.NoError(t, s.AddTurns(ctx, []conversation.Turn{a}))
			require.NoError(t, s.AddTurns(ctx, nil))

			turns, err := s.Turns(ctx)
			require.NoError(t, err)
			require.Len(t, turns, 2)
			assert.Equal(t, q.ID, turns[0].ID)
			assert.Nil(t, turns[0].Citations)
			assert.Equal(t, conversation.RoleModel, turns[1].Role)
			assert.Equal(t, []string{"doc-a-0", "doc-b-3"}, turns[1].Citations)
			assert.True(t, a.Timestamp.Equal(turns[1].Timestamp))

			require.NoError(t, s.UpdateTurnPosition(ctx, q.ID, 1, 2))
			turns, err = s.Turns(ctx)
			require.NoError(t, err)
			require.NotNil(t, turns[0].Y)
			assert.Equal(t, 2.0, *turns[0].Y)
			assert.ErrorIs(t, s.UpdateTurnPosition(ctx, "missing", 1, 2), ErrNotFound)

			require.NoError(t, s.DeleteTurn(ctx, q.ID))
			assert.ErrorIs(t, s.DeleteTurn(ctx, q.ID), ErrNotFound)
			turns, err = s.Turns(ctx)
			require.NoError(t, err)
			assert.Len(t, turns, 1)

			require.NoError(t, s.DeleteAllTurns(ctx))
			turns, err = s.Turns(ctx)
			require.NoError(t, err)
			assert.Empty(t, turns)
		})
	}
}

func TestStore_Entities(t *testing.T) {
	ctx := context.Background()

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			alice := extraction.Entity{ID: "e1", Name: "Alice", Type: extraction.TypePerson, Description: "author", SourceDoc: "a.txt"}
			paris := extraction.Entity{ID: "e2", Name: "Paris", Type: extraction.TypeLocation, Description: "city"}
			require.NoError(t, s.AddEntity(ctx, alice))
			require.NoError(t, s.AddEntities(ctx, []extraction.Entity{paris}))

			got, err := s.Entities(ctx)
			require.NoError(t, err)
			assert.Equal(t, []extraction.Entity{alice, paris}, got)

			require.NoError(t, s.DeleteEntity(ctx, "e1"))
			assert.ErrorIs(t, s.DeleteEntity(ctx, "e1"), ErrNotFound)

			require.NoError(t, s.DeleteAllEntities(ctx))
			got, err = s.Entities(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docrag.db")

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-a", "a.txt", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	chunks, err := s.Chunks(ctx)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestMemory_Isolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doc := sampleDocument("doc-a", "a.txt", time.Now())
	require.NoError(t, m.SaveDocument(ctx, doc))

	doc.Chunks[0].Embedding[0] = 99
	got, err := m.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got.Chunks[0].Embedding[0])
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, DefaultPath, cfg.Path)
	assert.NoError(t, cfg.Validate())

	assert.ErrorIs(t, Config{Driver: "postgres"}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Driver: DriverSQLite}.Validate(), ErrInvalidConfig)

	s, err := Open(context.Background(), Config{Driver: DriverMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}

func TestEmbeddingEncoding(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := DecodeEmbedding(EncodeEmbedding(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	assert.Nil(t, EncodeEmbedding(nil))
	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}
