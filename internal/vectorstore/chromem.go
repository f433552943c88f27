package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/vectorstore")

// errNoEmbedder is returned if chromem ever asks for an embedding. Vectors
// are always computed before they reach the index.
var errNoEmbedder = errors.New("chromem: embeddings must be supplied by the caller")

// ChromemConfig holds configuration for the chromem-go embedded index.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the index
	// in memory only.
	Path string

	// Compress enables gzip compression of the persisted files.
	Compress bool

	// CollectionPrefix prefixes the per-dimension collections.
	// Default: "docrag_chunks"
	CollectionPrefix string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = DefaultCollectionPrefix
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if err := ValidateCollectionName(CollectionName(c.CollectionPrefix, 0)); err != nil {
		return fmt.Errorf("%w: collection prefix: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Chromem is an Index backed by chromem-go.
type Chromem struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromem opens or creates a chromem index.
func NewChromem(config ChromemConfig, logger *zap.Logger) (*Chromem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem index initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.String("collection_prefix", config.CollectionPrefix),
	)

	return &Chromem{db: db, config: config, logger: logger}, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

// Add implements Index.
func (s *Chromem) Add(ctx context.Context, chunks []document.Chunk) (err error) {
	ctx, span := tracer.Start(ctx, "Chromem.Add")
	defer span.End()
	defer func(start time.Time) { observe(BackendChromem, "add", start, err) }(time.Now())

	dims, groups := groupByDimension(chunks)
	for _, dim := range dims {
		name := CollectionName(s.config.CollectionPrefix, dim)
		collection, err := s.db.GetOrCreateCollection(name, nil, noEmbed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("getting/creating collection %s: %w", name, err)
		}

		group := groups[dim]
		docs := make([]chromem.Document, len(group))
		for i, c := range group {
			docs[i] = chromem.Document{
				ID:        c.ID,
				Content:   c.Text,
				Embedding: c.Embedding,
				Metadata: map[string]string{
					keyDocumentID: c.DocumentID,
					keyIndex:      strconv.Itoa(c.Index),
					keySource:     c.Source,
				},
			}
		}

		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("adding documents to %s: %w", name, err)
		}

		s.logger.Debug("indexed chunks",
			zap.String("collection", name),
			zap.Int("count", len(docs)),
		)
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search implements retrieval.Searcher.
func (s *Chromem) Search(ctx context.Context, query []float32, k int) (_ []retrieval.Scored, err error) {
	ctx, span := tracer.Start(ctx, "Chromem.Search")
	defer span.End()
	defer func(start time.Time) { observe(BackendChromem, "search", start, err) }(time.Now())

	name := CollectionName(s.config.CollectionPrefix, len(query))
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("k", k),
	)
	if len(query) == 0 {
		return nil, nil
	}

	collection := s.db.GetCollection(name, noEmbed)
	if collection == nil {
		return nil, nil
	}

	// chromem rejects nResults above the document count.
	n := collection.Count()
	if k > 0 && k < n {
		n = k
	}
	if n == 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	out := make([]retrieval.Scored, 0, len(results))
	for _, r := range results {
		idx, _ := strconv.Atoi(r.Metadata[keyIndex])
		out = append(out, retrieval.Scored{
			Chunk: document.Chunk{
				ID:         r.ID,
				DocumentID: r.Metadata[keyDocumentID],
				Index:      idx,
				Text:       r.Content,
				Source:     r.Metadata[keySource],
			},
			Score: float64(r.Similarity),
		})
	}
	retrieval.SortByScore(out)

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DeleteDocument implements Index.
func (s *Chromem) DeleteDocument(ctx context.Context, documentID string) (err error) {
	ctx, span := tracer.Start(ctx, "Chromem.DeleteDocument")
	defer span.End()
	defer func(start time.Time) { observe(BackendChromem, "delete", start, err) }(time.Now())

	for name, collection := range s.collections() {
		if collection.Count() == 0 {
			continue
		}
		if err := collection.Delete(ctx, map[string]string{keyDocumentID: documentID}, nil); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("deleting document %s from %s: %w", documentID, name, err)
		}
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Reset implements Index.
func (s *Chromem) Reset(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Chromem.Reset")
	defer span.End()

	for name := range s.collections() {
		if err := s.db.DeleteCollection(name); err != nil {
			span.RecordError(err)
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks per dimension.
func (s *Chromem) Count() map[int]int {
	out := make(map[int]int)
	prefix := s.config.CollectionPrefix + "_"
	for name, collection := range s.collections() {
		dim, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		out[dim] = collection.Count()
	}
	return out
}

// collections returns this index's collections keyed by name.
func (s *Chromem) collections() map[string]*chromem.Collection {
	prefix := s.config.CollectionPrefix + "_"
	out := make(map[string]*chromem.Collection)
	for name, c := range s.db.ListCollections() {
		if strings.HasPrefix(name, prefix) {
			out[name] = c
		}
	}
	return out
}

// Close implements Index. Persisted data is written on every change, so
// there is nothing to flush.
func (s *Chromem) Close() error {
	return nil
}
