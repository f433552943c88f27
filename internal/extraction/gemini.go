package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/extraction")

const (
	// MaxInputRunes caps the combined text sent to the model.
	MaxInputRunes = 20000

	textSeparator = "\n\n"
	promptPrefix  = "Analyze text and extract key entities. Return JSON list.\nTEXT: "
)

// schemaNode is the subset of the OpenAPI schema the response schema uses.
type schemaNode struct {
	Type       string                `json:"type"`
	Enum       []string              `json:"enum,omitempty"`
	Items      *schemaNode           `json:"items,omitempty"`
	Properties map[string]schemaNode `json:"properties,omitempty"`
	Required   []string              `json:"required,omitempty"`
}

// ResponseSchema is the schema the model output must follow.
func ResponseSchema() any {
	enum := make([]string, len(EntityTypes))
	for i, t := range EntityTypes {
		enum[i] = string(t)
	}
	return schemaNode{
		Type: "ARRAY",
		Items: &schemaNode{
			Type: "OBJECT",
			Properties: map[string]schemaNode{
				"name":        {Type: "STRING"},
				"type":        {Type: "STRING", Enum: enum},
				"description": {Type: "STRING"},
				"sourceDoc":   {Type: "STRING"},
			},
			Required: []string{"name", "type", "description"},
		},
	}
}

// wireEntity is one element of the model's JSON answer.
type wireEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	SourceDoc   string `json:"sourceDoc"`
}

// GeminiExtractor asks Gemini for a schema-constrained entity list.
type GeminiExtractor struct {
	client *generation.Gemini
	logger *zap.Logger
}

// NewGemini creates a Gemini-backed extractor.
func NewGemini(cfg generation.ProviderConfig, logger *zap.Logger) (*GeminiExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := generation.NewGemini(cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiExtractor{client: client, logger: logger}, nil
}

// Extract joins texts, caps the result and returns the parsed entities with
// fresh ids. Empty input yields an empty list without a request.
func (g *GeminiExtractor) Extract(ctx context.Context, texts []string) ([]Entity, error) {
	if len(texts) == 0 {
		return []Entity{}, nil
	}

	ctx, span := tracer.Start(ctx, "GeminiExtractor.Extract")
	defer span.End()

	combined := truncateRunes(strings.Join(texts, textSeparator), MaxInputRunes)
	span.SetAttributes(
		attribute.Int("documents", len(texts)),
		attribute.Int("input_chars", len(combined)),
	)

	answer, err := g.client.Generate(ctx, generation.UserContent(promptPrefix+combined), &generation.GeminiConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   ResponseSchema(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("requesting entities: %w", err)
	}

	entities, err := parseEntities(answer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.For(ctx, g.logger).Warn("unparseable entity response", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("entities", len(entities)))
	return entities, nil
}

// parseEntities decodes the model answer. Some models wrap JSON in a
// markdown fence; that is stripped first.
func parseEntities(answer string) ([]Entity, error) {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return []Entity{}, nil
	}

	var raw []wireEntity
	if err := json.Unmarshal([]byte(answer), &raw); err != nil {
		return nil, fmt.Errorf("parsing entities: %w", err)
	}

	out := make([]Entity, 0, len(raw))
	for _, w := range raw {
		if strings.TrimSpace(w.Name) == "" {
			continue
		}
		out = append(out, Entity{
			ID:          uuid.NewString(),
			Name:        w.Name,
			Type:        ParseEntityType(w.Type),
			Description: w.Description,
			SourceDoc:   w.SourceDoc,
		})
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
