package embeddings

import (
	"context"
	"sync"
	"sync/atomic"
)

// Factory creates a provider.
type Factory func() (Provider, error)

// LazyProvider creates its provider on first use and shares it afterwards.
// A failed creation is not cached; the next call tries again. It is safe for
// concurrent use.
type LazyProvider struct {
	name      string
	dimension int
	factory   Factory

	mu     sync.Mutex
	p      atomic.Pointer[Provider]
	closed bool
}

// NewLazyProvider wraps factory. dimension is reported until the provider
// exists.
func NewLazyProvider(name string, dimension int, factory Factory) *LazyProvider {
	return &LazyProvider{name: name, dimension: dimension, factory: factory}
}

func (l *LazyProvider) get() (Provider, error) {
	if p := l.p.Load(); p != nil {
		return *p, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.p.Load(); p != nil {
		return *p, nil
	}
	if l.closed {
		return nil, ErrProviderClosed
	}
	p, err := l.factory()
	if err != nil {
		return nil, err
	}
	l.p.Store(&p)
	return p, nil
}

// Embed implements Embedder.
func (l *LazyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, text)
}

// Name implements Provider.
func (l *LazyProvider) Name() string {
	return l.name
}

// Dimension implements Provider.
func (l *LazyProvider) Dimension() int {
	if p := l.p.Load(); p != nil {
		return (*p).Dimension()
	}
	return l.dimension
}

// Initialized reports whether the provider has been created.
func (l *LazyProvider) Initialized() bool {
	return l.p.Load() != nil
}

// Close closes the provider if it was created. Later calls to Embed fail.
func (l *LazyProvider) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	p := l.p.Swap(nil)
	if p == nil {
		return nil
	}
	return (*p).Close()
}
