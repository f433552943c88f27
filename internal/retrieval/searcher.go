package retrieval

import (
	"context"
	"sort"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// Scored is a chunk with its similarity to a query.
type Scored struct {
	Chunk document.Chunk `json:"chunk"`
	Score float64        `json:"score"`
}

// Searcher returns up to k chunks most similar to query, best first. Only
// chunks whose embedding has the same dimension as query are considered.
// A non-positive k means no limit.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]Scored, error)
}

// ChunkSource lists every stored chunk.
type ChunkSource interface {
	Chunks(ctx context.Context) ([]document.Chunk, error)
}

// Exhaustive scores every chunk of Source. It is the reference searcher and
// suits stores of a few thousand chunks.
type Exhaustive struct {
	Source ChunkSource
}

// NewExhaustive creates an exhaustive searcher over src.
func NewExhaustive(src ChunkSource) *Exhaustive {
	return &Exhaustive{Source: src}
}

// Search implements Searcher.
func (e *Exhaustive) Search(ctx context.Context, query []float32, k int) ([]Scored, error) {
	chunks, err := e.Source.Chunks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		if c.Dimension() != len(query) {
			continue
		}
		s, ok := Cosine(query, c.Embedding)
		if !ok {
			continue
		}
		out = append(out, Scored{Chunk: c, Score: s})
	}

	SortByScore(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// SortByScore orders results by descending score. Ties keep chunk id order
// so results are stable across calls.
func SortByScore(results []Scored) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}
