package http

import (
	"time"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Documents int                        `json:"documents"`
	Providers document.ProviderSelection `json:"providers"`
}

// DocumentSummary is a document without its text and chunk bodies.
type DocumentSummary struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Class         document.Class  `json:"class"`
	Status        document.Status `json:"status"`
	SizeBytes     int64           `json:"size_bytes"`
	Chunks        int             `json:"chunks"`
	DroppedChunks int             `json:"dropped_chunks"`
	FailedChunks  int             `json:"failed_chunks"`
	X             *float64        `json:"x,omitempty"`
	Y             *float64        `json:"y,omitempty"`
}

func summarize(d *document.Document) DocumentSummary {
	return DocumentSummary{
		ID:            d.ID,
		Name:          d.Name,
		Class:         d.Class,
		Status:        d.Status,
		SizeBytes:     d.SizeBytes,
		Chunks:        len(d.Chunks),
		DroppedChunks: d.DroppedChunks,
		FailedChunks:  d.FailedChunks,
		X:             d.X,
		Y:             d.Y,
	}
}

// MIMEApplicationNDJSON is the content type of streamed ingestion events.
const MIMEApplicationNDJSON = "application/x-ndjson"

// IngestEvent is one line of a streamed upload.
type IngestEvent struct {
	Type       ingest.EventType `json:"type"`
	DocumentID string           `json:"document_id"`
	Status     document.Status  `json:"status,omitempty"`
	Message    string           `json:"message,omitempty"`
	Document   *DocumentSummary `json:"document,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func newIngestEvent(ev ingest.Event) IngestEvent {
	out := IngestEvent{
		Type:       ev.Type,
		DocumentID: ev.DocumentID,
		Status:     ev.Status,
		Message:    ev.Message,
		Timestamp:  ev.Timestamp,
	}
	if ev.Document != nil {
		sum := summarize(ev.Document)
		out.Document = &sum
	}
	return out
}

// DocumentListResponse is the response body for GET /api/v1/documents.
type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// PositionRequest is the request body for the position endpoints.
type PositionRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []retrieval.Scored `json:"results"`
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
	Persona string `json:"persona,omitempty"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse = app.Answer

// TurnListResponse is the response body for GET /api/v1/turns.
type TurnListResponse struct {
	Turns []conversation.Turn `json:"turns"`
}

// ExtractRequest is the request body for POST /api/v1/extract. An empty
// list extracts from every ready document.
type ExtractRequest struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// EntityListResponse lists entities.
type EntityListResponse struct {
	Entities []extraction.Entity `json:"entities"`
}

// PersonaListResponse is the response body for GET /api/v1/personas.
type PersonaListResponse struct {
	Personas []generation.Persona `json:"personas"`
}
