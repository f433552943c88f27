package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/store"
	"github.com/fyrsmithlabs/docrag/internal/watcher"
)

// ErrNotFound is returned when a document, turn or entity does not exist.
var ErrNotFound = store.ErrNotFound

// Submit starts ingesting task and returns its event channel. A task that
// reuses an existing document id replaces that document once it is saved;
// a failed task leaves the previous version searchable.
func (a *App) Submit(ctx context.Context, task ingest.Task) <-chan ingest.Event {
	return a.ingest.Submit(ctx, task)
}

// Ingest ingests task and waits for the finished document.
func (a *App) Ingest(ctx context.Context, task ingest.Task) (*document.Document, error) {
	var last ingest.Event
	for ev := range a.Submit(ctx, task) {
		last = ev
	}
	if last.Type == ingest.EventComplete {
		return last.Document, nil
	}
	return last.Document, errors.New(last.Message)
}

// IngestFile reads path and ingests it under a stable id derived from the
// path, so ingesting the same file again replaces it.
func (a *App) IngestFile(ctx context.Context, path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.Ingest(ctx, ingest.Task{
		ID:       watcher.DocumentID(path),
		Name:     filepath.Base(path),
		MimeHint: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	})
}

// Documents lists every stored document, oldest first.
func (a *App) Documents(ctx context.Context) ([]*document.Document, error) {
	return a.store.ListDocuments(ctx)
}

// Document returns one stored document.
func (a *App) Document(ctx context.Context, id string) (*document.Document, error) {
	return a.store.GetDocument(ctx, id)
}

// DeleteDocument removes a document from the store and the index.
func (a *App) DeleteDocument(ctx context.Context, id string) error {
	if err := a.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := a.index.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("removing %s from index: %w", id, err)
	}
	return nil
}

// DeleteAllDocuments empties the store and the index.
func (a *App) DeleteAllDocuments(ctx context.Context) error {
	if err := a.store.DeleteAllDocuments(ctx); err != nil {
		return err
	}
	return a.index.Reset(ctx)
}

// MoveDocument records the display position of a document.
func (a *App) MoveDocument(ctx context.Context, id string, x, y float64) error {
	return a.store.UpdateDocumentPosition(ctx, id, x, y)
}

// FileHandler adapts an App to directory watching.
type FileHandler struct {
	App *App
}

// Ingest implements watcher.Handler.
func (h FileHandler) Ingest(ctx context.Context, path string) error {
	doc, err := h.App.IngestFile(ctx, path)
	if err != nil {
		return err
	}
	h.App.logger.Info("file ingested",
		zap.String("path", path),
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(doc.Chunks)),
	)
	return nil
}

// Remove implements watcher.Handler.
func (h FileHandler) Remove(ctx context.Context, path string) error {
	err := h.App.DeleteDocument(ctx, watcher.DocumentID(path))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
