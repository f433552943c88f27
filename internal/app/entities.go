package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
)

// Extract pulls entities out of the given documents, or of every ready
// document when ids is empty, and stores them. All texts go out in one
// request, which the extractor caps. A failed request yields an empty list;
// only store errors and unknown ids are returned.
func (a *App) Extract(ctx context.Context, ids []string) ([]extraction.Entity, error) {
	docs, err := a.selectDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(docs))
	byName := make(map[string]string, len(docs))
	var only string
	for _, doc := range docs {
		if strings.TrimSpace(doc.CleanedText) == "" {
			continue
		}
		texts = append(texts, doc.CleanedText)
		byName[doc.Name] = doc.ID
		byName[doc.ID] = doc.ID
		only = doc.ID
	}
	if len(texts) == 0 {
		return []extraction.Entity{}, nil
	}
	if len(texts) > 1 {
		only = ""
	}

	found, err := a.entities.Extract(ctx, texts)
	if err != nil {
		a.logger.Warn("entity extraction failed", zap.Int("documents", len(texts)), zap.Error(err))
		return []extraction.Entity{}, nil
	}
	for i := range found {
		switch {
		case only != "":
			found[i].SourceDoc = only
		case byName[found[i].SourceDoc] != "":
			found[i].SourceDoc = byName[found[i].SourceDoc]
		}
	}

	if len(found) > 0 {
		if err := a.store.AddEntities(ctx, found); err != nil {
			return nil, err
		}
	}
	a.logger.Info("entities extracted", zap.Int("documents", len(texts)), zap.Int("entities", len(found)))
	return found, nil
}

// Entities returns every stored entity.
func (a *App) Entities(ctx context.Context) ([]extraction.Entity, error) {
	return a.store.Entities(ctx)
}

// ClearEntities deletes every stored entity.
func (a *App) ClearEntities(ctx context.Context) error {
	return a.store.DeleteAllEntities(ctx)
}

func (a *App) selectDocuments(ctx context.Context, ids []string) ([]*document.Document, error) {
	if len(ids) == 0 {
		all, err := a.store.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		ready := all[:0]
		for _, d := range all {
			if d.Status == document.StatusReady {
				ready = append(ready, d)
			}
		}
		return ready, nil
	}
	docs := make([]*document.Document, 0, len(ids))
	for _, id := range ids {
		d, err := a.store.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}
