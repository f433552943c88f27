package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// SubjectPrefix starts every event subject.
const SubjectPrefix = "ingest"

// Publisher forwards events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subject returns the subject an event is published on:
//
//	ingest.{document_id}.{type}
func Subject(ev Event) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, ev.DocumentID, ev.Type)
}

// NATSPublisher publishes events as JSON on a NATS connection. Chunk
// embeddings are stripped from the payload.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher wraps an established connection. The caller owns nc.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	if ev.Document != nil {
		slim := *ev.Document
		slim.Chunks = make([]document.Chunk, len(ev.Document.Chunks))
		for i, c := range ev.Document.Chunks {
			c.Embedding = nil
			slim.Chunks[i] = c
		}
		slim.CleanedText = ""
		ev.Document = &slim
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}
