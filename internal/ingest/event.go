package ingest

import (
	"time"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// EventType distinguishes progress from terminal events.
type EventType string

// Event types.
const (
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Terminal reports whether t ends a task.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// Event is one message from a running task.
type Event struct {
	Type       EventType       `json:"type"`
	DocumentID string          `json:"document_id"`
	Status     document.Status `json:"status,omitempty"`
	Message    string          `json:"message,omitempty"`
	// Document is set on complete events, and on error events once the
	// document exists.
	Document  *document.Document `json:"document,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Progress messages.
const (
	msgLoadingModel = "Loading Neural Model..."
	msgTabular      = "Processing Structured Data..."
	msgCode         = "Analyzing Code Blocks..."
	msgProse        = "Chunking Text..."
	msgRedacting    = "Redacting Secrets..."

	// MsgEmptyDocument is the error for documents without extractable text.
	MsgEmptyDocument = "File content is empty or unreadable."
)

func parsingMessage(doc *document.Document) string {
	return "Parsing " + document.Label(doc.Name, doc.Class) + "..."
}

func chunkingMessage(class document.Class) string {
	switch class.TextClass() {
	case document.ClassTabular:
		return msgTabular
	case document.ClassCode:
		return msgCode
	default:
		return msgProse
	}
}
