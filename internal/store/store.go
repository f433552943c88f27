package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates an unusable store configuration.
	ErrInvalidConfig = errors.New("invalid store configuration")
)

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DefaultPath is the SQLite database location.
const DefaultPath = "~/.local/share/docrag/docrag.db"

// Documents persists ingested documents and their chunks. A document and its
// chunks are always written together.
type Documents interface {
	// SaveDocument inserts or replaces a document with its chunks.
	SaveDocument(ctx context.Context, doc *document.Document) error
	SaveDocuments(ctx context.Context, docs []*document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	// ListDocuments returns every document, oldest first.
	ListDocuments(ctx context.Context) ([]*document.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteAllDocuments(ctx context.Context) error
	UpdateDocumentPosition(ctx context.Context, id string, x, y float64) error
	// Chunks returns the chunks of every document.
	Chunks(ctx context.Context) ([]document.Chunk, error)
}

// Turns persists the conversation.
type Turns interface {
	AddTurn(ctx context.Context, turn conversation.Turn) error
	AddTurns(ctx context.Context, turns []conversation.Turn) error
	// Turns returns the conversation in insertion order.
	Turns(ctx context.Context) ([]conversation.Turn, error)
	DeleteTurn(ctx context.Context, id string) error
	DeleteAllTurns(ctx context.Context) error
	UpdateTurnPosition(ctx context.Context, id string, x, y float64) error
}

// Entities persists extracted entities.
type Entities interface {
	AddEntity(ctx context.Context, e extraction.Entity) error
	AddEntities(ctx context.Context, entities []extraction.Entity) error
	Entities(ctx context.Context) ([]extraction.Entity, error)
	DeleteEntity(ctx context.Context, id string) error
	DeleteAllEntities(ctx context.Context) error
}

// Store is the full persisted state.
type Store interface {
	Documents
	Turns
	Entities
	Close() error
}

// Config selects and configures a store.
type Config struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite && c.Path == "" {
		c.Path = DefaultPath
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverMemory {
		return NewMemory(), nil
	}
	return OpenSQLite(ctx, cfg.Path, logger)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
