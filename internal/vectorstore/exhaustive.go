package vectorstore

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// Exhaustive is the index-free backend. It searches the document store
// directly, so Add, DeleteDocument and Reset have nothing to do.
type Exhaustive struct {
	searcher *retrieval.Exhaustive
}

// NewExhaustive creates an exhaustive backend over src.
func NewExhaustive(src retrieval.ChunkSource) *Exhaustive {
	return &Exhaustive{searcher: retrieval.NewExhaustive(src)}
}

// Search implements retrieval.Searcher.
func (e *Exhaustive) Search(ctx context.Context, query []float32, k int) ([]retrieval.Scored, error) {
	start := time.Now()
	res, err := e.searcher.Search(ctx, query, k)
	observe(BackendExhaustive, "search", start, err)
	return res, err
}

// Add implements Index.
func (e *Exhaustive) Add(context.Context, []document.Chunk) error { return nil }

// DeleteDocument implements Index.
func (e *Exhaustive) DeleteDocument(context.Context, string) error { return nil }

// Reset implements Index.
func (e *Exhaustive) Reset(context.Context) error { return nil }

// Close implements Index.
func (e *Exhaustive) Close() error { return nil }
