package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mime_hint TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL,
		cleaned_text TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		dropped_chunks INTEGER NOT NULL DEFAULT 0,
		failed_chunks INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		x REAL,
		y REAL
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		idx INTEGER NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		embedding BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, idx)`,
	`CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		citations TEXT NOT NULL DEFAULT '[]',
		x REAL,
		y REAL
	)`,
	`CREATE TABLE IF NOT EXISTS entities (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source_doc TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type)`,
}

type documentRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	MimeHint      string    `db:"mime_hint"`
	Class         string    `db:"class"`
	CleanedText   string    `db:"cleaned_text"`
	SizeBytes     int64     `db:"size_bytes"`
	Status        string    `db:"status"`
	DroppedChunks int       `db:"dropped_chunks"`
	FailedChunks  int       `db:"failed_chunks"`
	CreatedAt     time.Time `db:"created_at"`
	X             *float64  `db:"x"`
	Y             *float64  `db:"y"`
}

type chunkRow struct {
	ID         string `db:"id"`
	DocumentID string `db:"document_id"`
	Index      int    `db:"idx"`
	Source     string `db:"source"`
	Text       string `db:"text"`
	Embedding  []byte `db:"embedding"`
}

type turnRow struct {
	ID        string    `db:"id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
	Citations string    `db:"citations"`
	X         *float64  `db:"x"`
	Y         *float64  `db:"y"`
}

// SQLite is a Store in a single SQLite file.
type SQLite struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// OpenSQLite opens or creates the database at path. A leading ~ expands to
// the home directory; ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		expanded, err := expandHome(path)
		if err != nil {
			return nil, err
		}
		path = expanded
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	logger.Debug("sqlite store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back on error.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveDocument implements Documents.
func (s *SQLite) SaveDocument(ctx context.Context, doc *document.Document) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return saveDocument(ctx, tx, doc)
	})
}

// SaveDocuments implements Documents. All documents are written in one
// transaction.
func (s *SQLite) SaveDocuments(ctx context.Context, docs []*document.Document) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, doc := range docs {
			if err := saveDocument(ctx, tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveDocument(ctx context.Context, tx *sqlx.Tx, doc *document.Document) error {
	row := documentRow{
		ID:            doc.ID,
		Name:          doc.Name,
		MimeHint:      doc.MimeHint,
		Class:         string(doc.Class),
		CleanedText:   doc.CleanedText,
		SizeBytes:     doc.SizeBytes,
		Status:        string(doc.Status),
		DroppedChunks: doc.DroppedChunks,
		FailedChunks:  doc.FailedChunks,
		CreatedAt:     doc.CreatedAt,
		X:             doc.X,
		Y:             doc.Y,
	}
	// A replaced document keeps its display position unless it brings one.
	_, err := tx.NamedExecContext(ctx, `INSERT INTO documents
		(id, name, mime_hint, class, cleaned_text, size_bytes, status, dropped_chunks, failed_chunks, created_at, x, y)
		VALUES (:id, :name, :mime_hint, :class, :cleaned_text, :size_bytes, :status, :dropped_chunks, :failed_chunks, :created_at, :x, :y)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime_hint = excluded.mime_hint,
			class = excluded.class,
			cleaned_text = excluded.cleaned_text,
			size_bytes = excluded.size_bytes,
			status = excluded.status,
			dropped_chunks = excluded.dropped_chunks,
			failed_chunks = excluded.failed_chunks,
			created_at = excluded.created_at,
			x = COALESCE(excluded.x, documents.x),
			y = COALESCE(excluded.y, documents.y)`, row)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("replacing chunks of %s: %w", doc.ID, err)
	}
	if len(doc.Chunks) == 0 {
		return nil
	}

	rows := make([]chunkRow, len(doc.Chunks))
	for i, c := range doc.Chunks {
		rows[i] = chunkRow{
			ID:         c.ID,
			DocumentID: doc.ID,
			Index:      c.Index,
			Source:     c.Source,
			Text:       c.Text,
			Embedding:  EncodeEmbedding(c.Embedding),
		}
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO chunks (id, document_id, idx, source, text, embedding)
		VALUES (:id, :document_id, :idx, :source, :text, :embedding)`, rows)
	if err != nil {
		return fmt.Errorf("saving chunks of %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument implements Documents.
func (s *SQLite) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}

	var chunks []chunkRow
	if err := s.db.SelectContext(ctx, &chunks, `SELECT * FROM chunks WHERE document_id = ? ORDER BY idx`, id); err != nil {
		return nil, fmt.Errorf("loading chunks of %s: %w", id, err)
	}
	doc := row.toDocument()
	if doc.Chunks, err = toChunks(chunks); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments implements Documents.
func (s *SQLite) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM documents ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	chunks, err := s.Chunks(ctx)
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string][]document.Chunk, len(rows))
	for _, c := range chunks {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	out := make([]*document.Document, len(rows))
	for i, r := range rows {
		out[i] = r.toDocument()
		out[i].Chunks = byDoc[r.ID]
	}
	return out, nil
}

// DeleteDocument implements Documents.
func (s *SQLite) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
			return fmt.Errorf("deleting chunks of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
		return expectRow(res, "document", id)
	})
}

// DeleteAllDocuments implements Documents.
func (s *SQLite) DeleteAllDocuments(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("deleting documents: %w", err)
		}
		return nil
	})
}

// UpdateDocumentPosition implements Documents.
func (s *SQLite) UpdateDocumentPosition(ctx context.Context, id string, x, y float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET x = ?, y = ? WHERE id = ?`, x, y, id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	return expectRow(res, "document", id)
}

// Chunks implements Documents.
func (s *SQLite) Chunks(ctx context.Context) ([]document.Chunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM chunks ORDER BY document_id, idx`); err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	return toChunks(rows)
}

// AddTurn implements Turns.
func (s *SQLite) AddTurn(ctx context.Context, turn conversation.Turn) error {
	return s.AddTurns(ctx, []conversation.Turn{turn})
}

// AddTurns implements Turns.
func (s *SQLite) AddTurns(ctx context.Context, turns []conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	rows := make([]turnRow, len(turns))
	for i, t := range turns {
		citations, err := json.Marshal(nonNil(t.Citations))
		if err != nil {
			return fmt.Errorf("encoding citations: %w", err)
		}
		rows[i] = turnRow{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			Timestamp: t.Timestamp,
			Citations: string(citations),
			X:         t.X,
			Y:         t.Y,
		}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO turns (id, role, content, timestamp, citations, x, y)
			VALUES (:id, :role, :content, :timestamp, :citations, :x, :y)`, rows)
		if err != nil {
			return fmt.Errorf("saving turns: %w", err)
		}
		return nil
	})
}

// Turns implements Turns.
func (s *SQLite) Turns(ctx context.Context) ([]conversation.Turn, error) {
	var rows []turnRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, role, content, timestamp, citations, x, y FROM turns ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	out := make([]conversation.Turn, len(rows))
	for i, r := range rows {
		var citations []string
		if err := json.Unmarshal([]byte(r.Citations), &citations); err != nil {
			return nil, fmt.Errorf("decoding citations of turn %s: %w", r.ID, err)
		}
		if len(citations) == 0 {
			citations = nil
		}
		out[i] = conversation.Turn{
			ID:        r.ID,
			Role:      conversation.Role(r.Role),
			Content:   r.Content,
			Timestamp: r.Timestamp,
			Citations: citations,
			X:         r.X,
			Y:         r.Y,
		}
	}
	return out, nil
}

// DeleteTurn implements Turns.
func (s *SQLite) DeleteTurn(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting turn %s: %w", id, err)
	}
	return expectRow(res, "turn", id)
}

// DeleteAllTurns implements Turns.
func (s *SQLite) DeleteAllTurns(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return fmt.Errorf("deleting turns: %w", err)
	}
	return nil
}

// UpdateTurnPosition implements Turns.
func (s *SQLite) UpdateTurnPosition(ctx context.Context, id string, x, y float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE turns SET x = ?, y = ? WHERE id = ?`, x, y, id)
	if err != nil {
		return fmt.Errorf("updating turn %s: %w", id, err)
	}
	return expectRow(res, "turn", id)
}

// AddEntity implements Entities.
func (s *SQLite) AddEntity(ctx context.Context, e extraction.Entity) error {
	return s.AddEntities(ctx, []extraction.Entity{e})
}

// AddEntities implements Entities.
func (s *SQLite) AddEntities(ctx context.Context, entities []extraction.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO entities (id, name, type, description, source_doc)
			VALUES (:id, :name, :type, :description, :source_doc)`, entities)
		if err != nil {
			return fmt.Errorf("saving entities: %w", err)
		}
		return nil
	})
}

// Entities implements Entities.
func (s *SQLite) Entities(ctx context.Context) ([]extraction.Entity, error) {
	var out []extraction.Entity
	err := s.db.SelectContext(ctx, &out, `SELECT id, name, type, description, source_doc FROM entities ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	return out, nil
}

// DeleteEntity implements Entities.
func (s *SQLite) DeleteEntity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	return expectRow(res, "entity", id)
}

// DeleteAllEntities implements Entities.
func (s *SQLite) DeleteAllEntities(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("deleting entities: %w", err)
	}
	return nil
}

func (r documentRow) toDocument() *document.Document {
	return &document.Document{
		ID:            r.ID,
		Name:          r.Name,
		MimeHint:      r.MimeHint,
		Class:         document.Class(r.Class),
		CleanedText:   r.CleanedText,
		SizeBytes:     r.SizeBytes,
		Status:        document.Status(r.Status),
		DroppedChunks: r.DroppedChunks,
		FailedChunks:  r.FailedChunks,
		CreatedAt:     r.CreatedAt,
		X:             r.X,
		Y:             r.Y,
	}
}

func toChunks(rows []chunkRow) ([]document.Chunk, error) {
	out := make([]document.Chunk, len(rows))
	for i, r := range rows {
		vec, err := DecodeEmbedding(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.ID, err)
		}
		out[i] = document.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Index:      r.Index,
			Text:       r.Text,
			Source:     r.Source,
			Embedding:  vec,
		}
	}
	return out, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
