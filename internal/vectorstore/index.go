package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// DefaultCollectionPrefix prefixes every collection name.
const DefaultCollectionPrefix = "docrag_chunks"

// Payload keys stored next to each vector.
const (
	keyChunkID    = "chunk_id"
	keyDocumentID = "document_id"
	keyIndex      = "index"
	keySource     = "source"
	keyText       = "text"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Index is a Searcher that is kept in step with the document store.
type Index interface {
	retrieval.Searcher
	// Add indexes the embedded chunks. Chunks without an embedding are
	// skipped. Adding a chunk id twice replaces the earlier entry.
	Add(ctx context.Context, chunks []document.Chunk) error
	// DeleteDocument removes every chunk of the document.
	DeleteDocument(ctx context.Context, documentID string) error
	// Reset removes every indexed chunk.
	Reset(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// ValidateCollectionName validates a collection name.
// Pattern: ^[a-z0-9_]{1,64}$
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionName returns the collection holding vectors of dimension dim.
func CollectionName(prefix string, dim int) string {
	return fmt.Sprintf("%s_%d", prefix, dim)
}

// groupByDimension buckets embedded chunks by vector length, smallest first.
func groupByDimension(chunks []document.Chunk) ([]int, map[int][]document.Chunk) {
	groups := make(map[int][]document.Chunk)
	for _, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		groups[c.Dimension()] = append(groups[c.Dimension()], c)
	}
	dims := make([]int, 0, len(groups))
	for d := range groups {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	return dims, groups
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Rebuild clears idx and indexes every chunk of src.
func Rebuild(ctx context.Context, idx Index, src retrieval.ChunkSource) (int, error) {
	chunks, err := src.Chunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading chunks: %w", err)
	}
	if err := idx.Reset(ctx); err != nil {
		return 0, fmt.Errorf("resetting index: %w", err)
	}
	if err := idx.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}
	n := 0
	for _, c := range chunks {
		if c.HasEmbedding() {
			n++
		}
	}
	return n, nil
}
