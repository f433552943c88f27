package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/parser"
	"github.com/fyrsmithlabs/docrag/internal/redact"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/store"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// ErrEmptyInput is returned for blank questions and queries.
var ErrEmptyInput = errors.New("input is empty")

// Components are the collaborators an App is assembled from. Store,
// Embedder, Index and Generator are required.
type Components struct {
	Store     store.Store
	Embedder  embeddings.Provider
	Index     vectorstore.Index
	Generator *generation.Generator
	// Entities defaults to extraction.NoopExtractor.
	Entities  extraction.Extractor
	Redactor  ingest.Redactor
	Publisher ingest.Publisher
	// NATS is closed with the App when set.
	NATS *nats.Conn
}

// App owns the components of one docrag instance.
type App struct {
	cfg       *config.Config
	store     store.Store
	embedder  embeddings.Provider
	index     vectorstore.Index
	retriever *retrieval.Retriever
	generator *generation.Generator
	entities  extraction.Extractor
	ingest    *ingest.Orchestrator
	nc        *nats.Conn
	logger    *zap.Logger
}

// New builds every component from cfg. On error everything opened so far
// is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var c Components
	defer func() {
		if err != nil {
			closeComponents(c, logger)
		}
	}()

	c.Store, err = store.Open(ctx, store.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sel := cfg.Selection()
	ecfg := embeddings.ConfigFromSelection(sel)
	ecfg.Timeout = cfg.Embedding.Timeout
	ecfg.Logger = logger
	c.Embedder, err = embeddings.NewProvider(ecfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	c.Index, err = vectorstore.New(vectorStoreConfig(cfg.VectorStore), c.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if cfg.VectorStore.Provider != vectorstore.BackendExhaustive {
		n, err := vectorstore.Rebuild(ctx, c.Index, c.Store)
		if err != nil {
			return nil, fmt.Errorf("rebuilding vector index: %w", err)
		}
		logger.Info("vector index rebuilt", zap.String("backend", cfg.VectorStore.Provider), zap.Int("chunks", n))
	}

	personas := generation.DefaultPersonas()
	if cfg.Generation.PersonasFile != "" {
		personas, err = generation.LoadPersonas(cfg.Generation.PersonasFile)
		if err != nil {
			return nil, fmt.Errorf("loading personas: %w", err)
		}
	}
	gcfg := generation.ConfigFromSelection(sel)
	gcfg.Timeout = cfg.Generation.Timeout
	gcfg.AppURL = cfg.Generation.AppURL
	c.Generator = generation.New(generation.Config{
		Provider:      gcfg,
		Identity:      cfg.Generation.Identity,
		HistoryWindow: cfg.Retrieval.HistoryWindow,
		Personas:      personas,
	}, logger)

	c.Entities, err = extraction.New(gcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating entity extractor: %w", err)
	}

	if cfg.Ingest.RedactSecrets {
		var allow *redact.Allowlist
		if cfg.Ingest.AllowlistFile != "" {
			allow, err = redact.LoadAllowlist(cfg.Ingest.AllowlistFile)
			if err != nil {
				return nil, fmt.Errorf("loading allowlist: %w", err)
			}
		}
		c.Redactor = redact.New(nil, allow, logger)
	}

	if cfg.NATS.URL != "" {
		c.NATS, err = nats.Connect(cfg.NATS.URL,
			nats.Name("docrag"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NATS.URL, err)
		}
		c.Publisher = ingest.NewNATSPublisher(c.NATS)
		logger.Info("publishing ingestion events", zap.String("url", cfg.NATS.URL))
	}

	return Assemble(c, cfg, logger)
}

// Assemble wires prebuilt components into an App.
func Assemble(c Components, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if c.Store == nil || c.Embedder == nil || c.Index == nil || c.Generator == nil {
		return nil, errors.New("app: store, embedder, index and generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if c.Entities == nil {
		c.Entities = extraction.NoopExtractor{}
	}

	orch, err := ingest.New(ingest.Deps{
		Extractor: parser.NewExtractor(parser.Config{PageConcurrency: cfg.Ingest.PageConcurrency}, logger),
		Embedder:  c.Embedder,
		Sink:      c.Store,
		Index:     c.Index,
		Redactor:  c.Redactor,
		Publisher: c.Publisher,
	}, ingest.Config{Retrieval: cfg.Retrieval, EventBuffer: cfg.Ingest.EventBuffer}, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		store:     c.Store,
		embedder:  c.Embedder,
		index:     c.Index,
		retriever: retrieval.New(c.Embedder, c.Index, retrieval.ConfigFrom(cfg.Retrieval), logger),
		generator: c.Generator,
		entities:  c.Entities,
		ingest:    orch,
		nc:        c.NATS,
		logger:    logger,
	}, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Personas returns the available personas.
func (a *App) Personas() []generation.Persona { return a.generator.Personas().List() }

// Close waits for running ingestions and releases every component.
func (a *App) Close() error {
	a.ingest.Wait()
	return closeComponents(Components{
		Store:    a.store,
		Embedder: a.embedder,
		Index:    a.index,
		NATS:     a.nc,
	}, a.logger)
}

func closeComponents(c Components, logger *zap.Logger) error {
	var errs []error
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			logger.Warn("draining NATS connection", zap.Error(err))
		}
	}
	if c.Index != nil {
		errs = append(errs, c.Index.Close())
	}
	if c.Embedder != nil {
		errs = append(errs, c.Embedder.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

func vectorStoreConfig(vs config.VectorStoreConfig) vectorstore.Config {
	return vectorstore.Config{
		Provider: vs.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:     vs.ChromemPath,
			Compress: vs.ChromemCompress,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:   vs.QdrantHost,
			Port:   vs.QdrantPort,
			APIKey: vs.QdrantAPIKey.Value(),
			UseTLS: vs.QdrantTLS,
		},
	}
}
