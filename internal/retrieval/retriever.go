package retrieval

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/retrieval")

// Config tunes a Retriever.
type Config struct {
	// Threshold is the exclusive lower bound on similarity.
	Threshold float64
	// TopK bounds the number of results.
	TopK int
}

// ConfigFrom extracts the retrieval tunables from cfg.
func ConfigFrom(cfg document.RetrievalConfig) Config {
	cfg.ApplyDefaults()
	return Config{Threshold: cfg.SimilarityThreshold, TopK: cfg.TopK}
}

// Retriever embeds a query and returns the best matching chunks.
type Retriever struct {
	embedder embeddings.Embedder
	searcher Searcher
	cfg      Config
	logger   *zap.Logger
}

// New creates a retriever. A nil logger disables logging.
func New(embedder embeddings.Embedder, searcher Searcher, cfg Config, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = document.DefaultTopK
	}
	return &Retriever{embedder: embedder, searcher: searcher, cfg: cfg, logger: logger}
}

// Retrieve returns at most TopK chunks scoring above the threshold, best
// first. Every failure yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string) []Scored {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		logging.For(ctx, r.logger).Warn("query embedding unavailable", zap.Error(err))
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "no query embedding")
		return nil
	}
	span.SetAttributes(attribute.Int("dimension", len(vec)))

	return r.RetrieveVector(ctx, vec)
}

// RetrieveVector is Retrieve for an already embedded query.
func (r *Retriever) RetrieveVector(ctx context.Context, vec []float32) []Scored {
	candidates, err := r.searcher.Search(ctx, vec, r.cfg.TopK)
	if err != nil {
		logging.For(ctx, r.logger).Warn("search failed", zap.Error(err))
		return nil
	}

	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if c.Chunk.Dimension() > 0 && c.Chunk.Dimension() != len(vec) {
			continue
		}
		if c.Score > r.cfg.Threshold {
			out = append(out, c)
		}
	}
	SortByScore(out)
	if len(out) > r.cfg.TopK {
		out = out[:r.cfg.TopK]
	}

	r.logger.Debug("retrieved chunks",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(out)),
	)
	return out
}
