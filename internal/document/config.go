package document

import "fmt"

// Defaults for RetrievalConfig.
const (
	DefaultTargetChunkSize      = 1000
	DefaultMinChunkLength       = 20
	DefaultMaxChunksPerDocument = 50
	DefaultSimilarityThreshold  = 0.35
	DefaultTopK                 = 5
	DefaultOverlapPieces        = 1
	DefaultHistoryWindow        = 10
)

// RetrievalConfig holds the process-wide tunables of the pipeline.
type RetrievalConfig struct {
	TargetChunkSize      int     `koanf:"target_chunk_size" json:"target_chunk_size"`
	MinChunkLength       int     `koanf:"min_chunk_length" json:"min_chunk_length"`
	MaxChunksPerDocument int     `koanf:"max_chunks_per_document" json:"max_chunks_per_document"`
	SimilarityThreshold  float64 `koanf:"similarity_threshold" json:"similarity_threshold"`
	TopK                 int     `koanf:"top_k" json:"top_k"`
	// OverlapPieces is the number of trailing pieces of a flushed prose
	// bundle carried into the next one. Zero disables overlap.
	OverlapPieces int `koanf:"overlap_pieces" json:"overlap_pieces"`
	// HistoryWindow is the number of recent non-system turns sent to the
	// generator.
	HistoryWindow int `koanf:"history_window" json:"history_window"`
}

// DefaultRetrievalConfig returns the default tunables.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TargetChunkSize:      DefaultTargetChunkSize,
		MinChunkLength:       DefaultMinChunkLength,
		MaxChunksPerDocument: DefaultMaxChunksPerDocument,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		TopK:                 DefaultTopK,
		OverlapPieces:        DefaultOverlapPieces,
		HistoryWindow:        DefaultHistoryWindow,
	}
}

// ApplyDefaults fills zero values. SimilarityThreshold and OverlapPieces are
// left alone since zero is meaningful for both; start from
// DefaultRetrievalConfig to get their defaults. A negative OverlapPieces
// resets it to the default.
func (c *RetrievalConfig) ApplyDefaults() {
	if c.TargetChunkSize == 0 {
		c.TargetChunkSize = DefaultTargetChunkSize
	}
	if c.MinChunkLength == 0 {
		c.MinChunkLength = DefaultMinChunkLength
	}
	if c.MaxChunksPerDocument == 0 {
		c.MaxChunksPerDocument = DefaultMaxChunksPerDocument
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.OverlapPieces < 0 {
		c.OverlapPieces = DefaultOverlapPieces
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
}

// Validate checks the tunables for consistency.
func (c RetrievalConfig) Validate() error {
	if c.TargetChunkSize <= 0 {
		return fmt.Errorf("target_chunk_size must be positive, got %d", c.TargetChunkSize)
	}
	if c.MinChunkLength < 0 || c.MinChunkLength > c.TargetChunkSize {
		return fmt.Errorf("min_chunk_length must be in [0, %d], got %d", c.TargetChunkSize, c.MinChunkLength)
	}
	if c.MaxChunksPerDocument <= 0 {
		return fmt.Errorf("max_chunks_per_document must be positive, got %d", c.MaxChunksPerDocument)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [-1, 1], got %f", c.SimilarityThreshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history_window must be positive, got %d", c.HistoryWindow)
	}
	return nil
}
