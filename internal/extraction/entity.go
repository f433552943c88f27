package extraction

import (
	"context"
	"strings"
)

// EntityType classifies an entity.
type EntityType string

// Entity types.
const (
	TypeConcept  EntityType = "concept"
	TypePerson   EntityType = "person"
	TypeLocation EntityType = "location"
	TypeMetric   EntityType = "metric"
	TypeDate     EntityType = "date"
	TypeOther    EntityType = "other"
)

// EntityTypes lists every entity type.
var EntityTypes = []EntityType{TypeConcept, TypePerson, TypeLocation, TypeMetric, TypeDate, TypeOther}

// ParseEntityType maps s onto a known type, defaulting to other.
func ParseEntityType(s string) EntityType {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EntityTypes {
		if t == known {
			return t
		}
	}
	return TypeOther
}

// Entity is one extracted item.
type Entity struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Type        EntityType `json:"type" db:"type"`
	Description string     `json:"description" db:"description"`
	SourceDoc   string     `json:"source_doc,omitempty" db:"source_doc"`
}

// Extractor extracts entities from document texts.
type Extractor interface {
	Extract(ctx context.Context, texts []string) ([]Entity, error)
}

// NoopExtractor is used by providers without schema-constrained output.
type NoopExtractor struct{}

// Extract returns an empty list.
func (NoopExtractor) Extract(context.Context, []string) ([]Entity, error) {
	return []Entity{}, nil
}
