package extraction

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/generation"
)

// New returns the extractor for cfg.Provider. Only Gemini extracts; every
// other provider gets a NoopExtractor.
func New(cfg generation.ProviderConfig, logger *zap.Logger) (Extractor, error) {
	if cfg.Provider != generation.ProviderGemini {
		if logger != nil {
			logger.Debug("entity extraction unavailable for provider", zap.String("provider", cfg.Provider))
		}
		return NoopExtractor{}, nil
	}
	return NewGemini(cfg, logger)
}
