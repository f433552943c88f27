package document

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a document.
type Status string

const (
	// StatusIndexing is set when ingestion starts.
	StatusIndexing Status = "indexing"
	// StatusReady is set when the pipeline completed.
	StatusReady Status = "ready"
	// StatusError is set when the document was empty or unreadable.
	StatusError Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIndexing, StatusReady, StatusError:
		return true
	}
	return false
}

// Chunk is a bounded, independently embeddable unit of a document.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	// Source is the name of the owning document, used for citations.
	Source    string    `json:"source,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// NewChunk creates a chunk for the given document and ordinal index.
func NewChunk(documentID string, index int, text string) Chunk {
	return Chunk{
		ID:         ChunkID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Text:       text,
	}
}

// ChunkID returns the identity of the chunk at index within a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%d", documentID, index)
}

// WithEmbedding returns a copy of c carrying vec. A chunk that already has an
// embedding is returned unchanged.
func (c Chunk) WithEmbedding(vec []float32) Chunk {
	if c.Embedding != nil {
		return c
	}
	out := c
	out.Embedding = append([]float32(nil), vec...)
	return out
}

// HasEmbedding reports whether an embedding is attached.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Dimension returns the dimensionality of the attached embedding, or 0.
func (c Chunk) Dimension() int {
	return len(c.Embedding)
}

// Document is an ingested document and its chunks.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeHint    string    `json:"mime_hint,omitempty"`
	Class       Class     `json:"class"`
	CleanedText string    `json:"cleaned_text,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      Status    `json:"status"`
	Chunks      []Chunk   `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`

	// DroppedChunks counts chunks beyond MaxChunksPerDocument that were
	// never embedded.
	DroppedChunks int `json:"dropped_chunks"`
	// FailedChunks counts chunks whose embedding failed and were skipped.
	FailedChunks int `json:"failed_chunks"`

	// X and Y are display coordinates owned by the presentation layer.
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

// New creates a document in the indexing state.
func New(id, name, mimeHint string, size int64) *Document {
	return &Document{
		ID:        id,
		Name:      name,
		MimeHint:  mimeHint,
		Class:     Classify(name, mimeHint),
		SizeBytes: size,
		Status:    StatusIndexing,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkReady transitions the document to ready with its final chunk set.
func (d *Document) MarkReady(chunks []Chunk) {
	d.Chunks = chunks
	d.Status = StatusReady
}

// MarkError transitions the document to the error state.
func (d *Document) MarkError() {
	d.Status = StatusError
}

// EmbeddedChunks returns the chunks that carry an embedding.
func (d *Document) EmbeddedChunks() []Chunk {
	out := make([]Chunk, 0, len(d.Chunks))
	for _, c := range d.Chunks {
		if c.HasEmbedding() {
			out = append(out, c)
		}
	}
	return out
}
