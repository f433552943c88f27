package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunking"
	"github.com/fyrsmithlabs/docrag/internal/cleaning"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/parser"
	"github.com/fyrsmithlabs/docrag/internal/redact"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/ingest")

const defaultEventBuffer = 64

// ErrEmptyDocument is returned for documents without extractable text.
var ErrEmptyDocument = errors.New(MsgEmptyDocument)

// Task is one document to ingest.
type Task struct {
	// ID is the document id. Generated when empty.
	ID       string
	Name     string
	MimeHint string
	Data     []byte
}

// Sink receives every finished document exactly once.
type Sink interface {
	SaveDocument(ctx context.Context, doc *document.Document) error
}

// Indexer mirrors embedded chunks into a search index. A saved document
// replaces whatever the index held for its id.
type Indexer interface {
	Add(ctx context.Context, chunks []document.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Redactor scrubs secrets from cleaned text.
type Redactor interface {
	Redact(name, text string) (string, redact.Report, error)
}

// initializer is implemented by embedders that load a model lazily.
type initializer interface {
	Initialized() bool
}

// Config tunes an Orchestrator.
type Config struct {
	Retrieval document.RetrievalConfig
	// EventBuffer is the capacity of each task's event channel.
	EventBuffer int
}

// Deps are the collaborators of an Orchestrator. Extractor, Embedder and
// Sink are required.
type Deps struct {
	Extractor *parser.Extractor
	Embedder  embeddings.Embedder
	Sink      Sink
	Index     Indexer
	Redactor  Redactor
	Publisher Publisher
}

// Orchestrator runs ingestion tasks.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates an orchestrator. A nil logger disables logging.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Extractor == nil || deps.Embedder == nil || deps.Sink == nil {
		return nil, errors.New("ingest: extractor, embedder and sink are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Retrieval.ApplyDefaults()
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if cfg.EventBuffer < 2 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}, nil
}

// Submit starts task in its own goroutine and returns its event channel.
// The channel is closed after the terminal event. Cancelling ctx aborts the
// task between stages with an error event.
func (o *Orchestrator) Submit(ctx context.Context, task Task) <-chan Event {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	r := &run{
		o:      o,
		events: make(chan Event, o.cfg.EventBuffer),
		logger: o.logger.With(zap.String("document_id", task.ID), zap.String("document", task.Name)),
	}

	o.wg.Add(1)
	InFlight.Inc()
	go func() {
		defer o.wg.Done()
		defer InFlight.Dec()
		defer close(r.events)
		r.execute(ctx, task)
	}()
	return r.events
}

// Run submits task and waits for its terminal event.
func (o *Orchestrator) Run(ctx context.Context, task Task) (*document.Document, error) {
	var last Event
	for ev := range o.Submit(ctx, task) {
		last = ev
	}
	if last.Type == EventComplete {
		return last.Document, nil
	}
	return last.Document, errors.New(last.Message)
}

// Wait blocks until every submitted task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run is the state of one task.
type run struct {
	o      *Orchestrator
	events chan Event
	logger *zap.Logger
}

// status sends a progress event unless the buffer is nearly full. One slot
// stays free so the terminal event never blocks.
func (r *run) status(ctx context.Context, doc *document.Document, msg string) {
	ev := Event{
		Type:       EventStatus,
		DocumentID: doc.ID,
		Status:     document.StatusIndexing,
		Message:    msg,
		Timestamp:  time.Now().UTC(),
	}
	r.publish(ctx, ev)
	if len(r.events) >= cap(r.events)-1 {
		return
	}
	r.events <- ev
}

func (r *run) terminal(ctx context.Context, ev Event) {
	ev.Timestamp = time.Now().UTC()
	r.publish(ctx, ev)
	r.events <- ev
}

func (r *run) publish(ctx context.Context, ev Event) {
	if r.o.deps.Publisher == nil {
		return
	}
	if err := r.o.deps.Publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("event publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (r *run) execute(ctx context.Context, task Task) {
	start := time.Now()
	doc := document.New(task.ID, task.Name, task.MimeHint, int64(len(task.Data)))

	ctx, span := tracer.Start(ctx, "Orchestrator.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", doc.ID),
		attribute.String("class", string(doc.Class)),
		attribute.Int("size_bytes", len(task.Data)),
	)

	err := r.pipeline(ctx, doc, task.Data)
	Duration.WithLabelValues(string(doc.Class)).Observe(time.Since(start).Seconds())

	if err != nil {
		doc.MarkError()
		result := "error"
		if ctx.Err() != nil {
			result = "cancelled"
		}
		DocumentsTotal.WithLabelValues(string(doc.Class), result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("ingestion failed", zap.Error(err))

		r.terminal(ctx, Event{
			Type:       EventError,
			DocumentID: doc.ID,
			Status:     document.StatusError,
			Message:    err.Error(),
			Document:   doc,
		})
		return
	}

	DocumentsTotal.WithLabelValues(string(doc.Class), "ready").Inc()
	r.logger.Info("document ingested",
		zap.Int("chunks", len(doc.Chunks)),
		zap.Int("dropped", doc.DroppedChunks),
		zap.Int("failed", doc.FailedChunks),
		zap.Duration("duration", time.Since(start)),
	)
	r.terminal(ctx, Event{
		Type:       EventComplete,
		DocumentID: doc.ID,
		Status:     document.StatusReady,
		Document:   doc,
	})
}

func (r *run) pipeline(ctx context.Context, doc *document.Document, data []byte) error {
	deps := r.o.deps
	cfg := r.o.cfg.Retrieval

	r.status(ctx, doc, parsingMessage(doc))
	extracted, err := deps.Extractor.Extract(ctx, data, doc.Class)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s (%v)", MsgEmptyDocument, err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := cleaning.Clean(doc.Class, extracted.Text)
	if deps.Redactor != nil {
		r.status(ctx, doc, msgRedacting)
		redacted, report, err := deps.Redactor.Redact(doc.Name, text)
		if err != nil {
			return fmt.Errorf("redacting secrets: %w", err)
		}
		if report.Total > 0 {
			r.logger.Info("secrets removed before indexing", zap.Int("count", report.Total))
		}
		text = redacted
	}
	doc.CleanedText = text

	r.status(ctx, doc, chunkingMessage(doc.Class))
	res := chunking.Chunk(doc.Class, text, cfg)
	doc.DroppedChunks = res.Dropped
	ChunksTotal.WithLabelValues("dropped").Add(float64(res.Dropped))
	ChunksTotal.WithLabelValues("discarded").Add(float64(res.Discarded))
	if err := ctx.Err(); err != nil {
		return err
	}

	chunks, err := r.embed(ctx, doc, res.Chunks)
	if err != nil {
		return err
	}
	doc.MarkReady(chunks)

	if err := deps.Sink.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	if deps.Index != nil {
		r.reindex(ctx, doc.ID, chunks)
	}
	return nil
}

// reindex swaps the indexed chunks of a saved document. It only runs after
// SaveDocument so a failed re-ingest leaves the previous entries in place.
func (r *run) reindex(ctx context.Context, id string, chunks []document.Chunk) {
	index := r.o.deps.Index
	if err := index.DeleteDocument(ctx, id); err != nil {
		r.logger.Warn("removing previous index entries", zap.String("document_id", id), zap.Error(err))
	}
	if len(chunks) == 0 {
		return
	}
	if err := index.Add(ctx, chunks); err != nil {
		r.logger.Warn("index update failed, search falls back to a rebuild", zap.Error(err))
	}
}

// embed embeds texts one at a time. A failed chunk is counted and skipped.
func (r *run) embed(ctx context.Context, doc *document.Document, texts []string) ([]document.Chunk, error) {
	embedder := r.o.deps.Embedder
	if lazy, ok := embedder.(initializer); ok && !lazy.Initialized() && len(texts) > 0 {
		r.status(ctx, doc, msgLoadingModel)
	}

	chunks := make([]document.Chunk, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.status(ctx, doc, fmt.Sprintf("Embedding chunk %d/%d...", i+1, len(texts)))

		vec, err := embedder.Embed(ctx, text)
		if err != nil || len(vec) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			doc.FailedChunks++
			ChunksTotal.WithLabelValues("failed").Inc()
			r.logger.Debug("chunk embedding failed", zap.Int("index", i), zap.Error(err))
			continue
		}

		c := document.NewChunk(doc.ID, i, text).WithEmbedding(vec)
		c.Source = doc.Name
		chunks = append(chunks, c)
		ChunksTotal.WithLabelValues("embedded").Inc()
	}
	return chunks, nil
}
