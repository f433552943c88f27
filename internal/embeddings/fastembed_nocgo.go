//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

const (
	defaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"
	fastEmbedAvailable    = false
)

// ErrFastEmbedNotAvailable is returned when the binary was built without cgo.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use a remote embedding provider)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is a stub for non-cgo builds.
type FastEmbedProvider struct{}

// NewFastEmbedProvider returns ErrFastEmbedNotAvailable.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Embed returns ErrFastEmbedNotAvailable.
func (p *FastEmbedProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Name implements Provider.
func (p *FastEmbedProvider) Name() string { return ProviderLocal }

// Dimension returns 0.
func (p *FastEmbedProvider) Dimension() int { return 0 }

// Close is a no-op.
func (p *FastEmbedProvider) Close() error { return nil }
