package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
)

// Memory is a Store held in process memory. Values are copied on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]*document.Document
	turns    []conversation.Turn
	entities []extraction.Entity
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*document.Document)}
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// SaveDocument implements Documents.
func (m *Memory) SaveDocument(_ context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(doc)
	return nil
}

// SaveDocuments implements Documents.
func (m *Memory) SaveDocuments(_ context.Context, docs []*document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.put(doc)
	}
	return nil
}

// put stores a copy of doc. A replaced document keeps its display position
// unless doc brings one.
func (m *Memory) put(doc *document.Document) {
	c := cloneDocument(doc)
	if prev, ok := m.docs[doc.ID]; ok && c.X == nil && c.Y == nil {
		c.X, c.Y = prev.X, prev.Y
	}
	m.docs[doc.ID] = c
}

// GetDocument implements Documents.
func (m *Memory) GetDocument(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, notFound("document", id)
	}
	return cloneDocument(doc), nil
}

// ListDocuments implements Documents.
func (m *Memory) ListDocuments(_ context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedDocuments(), nil
}

func (m *Memory) sortedDocuments() []*document.Document {
	out := make([]*document.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteDocument implements Documents.
func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return notFound("document", id)
	}
	delete(m.docs, id)
	return nil
}

// DeleteAllDocuments implements Documents.
func (m *Memory) DeleteAllDocuments(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*document.Document)
	return nil
}

// UpdateDocumentPosition implements Documents.
func (m *Memory) UpdateDocumentPosition(_ context.Context, id string, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return notFound("document", id)
	}
	doc.X, doc.Y = &x, &y
	return nil
}

// Chunks implements Documents.
func (m *Memory) Chunks(_ context.Context) ([]document.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []document.Chunk
	for _, id := range ids {
		out = append(out, cloneDocument(m.docs[id]).Chunks...)
	}
	return out, nil
}

// AddTurn implements Turns.
func (m *Memory) AddTurn(ctx context.Context, turn conversation.Turn) error {
	return m.AddTurns(ctx, []conversation.Turn{turn})
}

// AddTurns implements Turns.
func (m *Memory) AddTurns(_ context.Context, turns []conversation.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range turns {
		m.turns = append(m.turns, cloneTurn(t))
	}
	return nil
}

// Turns implements Turns.
func (m *Memory) Turns(_ context.Context) ([]conversation.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]conversation.Turn, len(m.turns))
	for i, t := range m.turns {
		out[i] = cloneTurn(t)
	}
	return out, nil
}

// DeleteTurn implements Turns.
func (m *Memory) DeleteTurn(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.turns {
		if t.ID == id {
			m.turns = append(m.turns[:i], m.turns[i+1:]...)
			return nil
		}
	}
	return notFound("turn", id)
}

// DeleteAllTurns implements Turns.
func (m *Memory) DeleteAllTurns(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	return nil
}

// UpdateTurnPosition implements Turns.
func (m *Memory) UpdateTurnPosition(_ context.Context, id string, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.turns {
		if m.turns[i].ID == id {
			m.turns[i].X, m.turns[i].Y = &x, &y
			return nil
		}
	}
	return notFound("turn", id)
}

// AddEntity implements Entities.
func (m *Memory) AddEntity(ctx context.Context, e extraction.Entity) error {
	return m.AddEntities(ctx, []extraction.Entity{e})
}

// AddEntities implements Entities.
func (m *Memory) AddEntities(_ context.Context, entities []extraction.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = append(m.entities, entities...)
	return nil
}

// Entities implements Entities.
func (m *Memory) Entities(_ context.Context) ([]extraction.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]extraction.Entity(nil), m.entities...), nil
}

// DeleteEntity implements Entities.
func (m *Memory) DeleteEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entities {
		if e.ID == id {
			m.entities = append(m.entities[:i], m.entities[i+1:]...)
			return nil
		}
	}
	return notFound("entity", id)
}

// DeleteAllEntities implements Entities.
func (m *Memory) DeleteAllEntities(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = nil
	return nil
}

func cloneDocument(d *document.Document) *document.Document {
	out := *d
	out.X, out.Y = cloneFloat(d.X), cloneFloat(d.Y)
	if d.Chunks != nil {
		out.Chunks = make([]document.Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			c.Embedding = append([]float32(nil), c.Embedding...)
			if len(c.Embedding) == 0 {
				c.Embedding = nil
			}
			out.Chunks[i] = c
		}
	}
	return &out
}

func cloneTurn(t conversation.Turn) conversation.Turn {
	t.Citations = append([]string(nil), t.Citations...)
	if len(t.Citations) == 0 {
		t.Citations = nil
	}
	t.X, t.Y = cloneFloat(t.X), cloneFloat(t.Y)
	return t
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
