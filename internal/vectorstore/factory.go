package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// Backend names.
const (
	BackendExhaustive = "exhaustive"
	BackendChromem    = "chromem"
	BackendQdrant     = "qdrant"
)

// Config selects and configures a backend.
type Config struct {
	// Provider is exhaustive (default), chromem or qdrant.
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// New creates the configured index. src backs the exhaustive backend.
//
//	idx, err := vectorstore.New(vectorstore.Config{Provider: "chromem"}, store, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
func New(cfg Config, src retrieval.ChunkSource, logger *zap.Logger) (Index, error) {
	switch cfg.Provider {
	case BackendExhaustive, "":
		if src == nil {
			return nil, fmt.Errorf("%w: exhaustive backend needs a chunk source", ErrInvalidConfig)
		}
		return NewExhaustive(src), nil
	case BackendChromem:
		return NewChromem(cfg.Chromem, logger)
	case BackendQdrant:
		return NewQdrant(cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: exhaustive, chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
