package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	documentKey ctxKey = iota
	personaKey
	requestKey
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is accepted by WithDocumentID and
// WithRequestID: 1 to 128 letters, digits, hyphens or underscores.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// WithDocumentID returns ctx carrying the id of the document being
// processed. Invalid ids leave ctx unchanged.
func WithDocumentID(ctx context.Context, id string) context.Context {
	if !ValidID(id) {
		return ctx
	}
	return context.WithValue(ctx, documentKey, id)
}

// DocumentID returns the document id stored in ctx.
func DocumentID(ctx context.Context) string {
	id, _ := ctx.Value(documentKey).(string)
	return id
}

// WithRequestID returns ctx carrying an HTTP request id. Invalid ids, which
// may come from a client header, leave ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !ValidID(id) {
		return ctx
	}
	return context.WithValue(ctx, requestKey, id)
}

// RequestID returns the request id stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestKey).(string)
	return id
}

// WithPersona returns ctx carrying the persona answering a chat turn.
func WithPersona(ctx context.Context, persona string) context.Context {
	if persona == "" {
		return ctx
	}
	return context.WithValue(ctx, personaKey, persona)
}

// Persona returns the persona stored in ctx.
func Persona(ctx context.Context) string {
	p, _ := ctx.Value(personaKey).(string)
	return p
}

// ContextFields returns the correlation fields held by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := DocumentID(ctx); id != "" {
		fields = append(fields, zap.String("document_id", id))
	}
	if p := Persona(ctx); p != "" {
		fields = append(fields, zap.String("persona", p))
	}
	return fields
}

// For returns logger with the correlation fields of ctx attached.
func For(ctx context.Context, logger *zap.Logger) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
