package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	}
	return false
}

// Turn is one message of a conversation. Citations reference chunks by id;
// embeddings are never copied into a turn.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Citations []string  `json:"citations,omitempty"`

	// X and Y are display coordinates owned by the presentation layer.
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

// NewTurn creates a turn with a generated id and the current time.
func NewTurn(role Role, content string, citations ...string) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Citations: citations,
	}
}

// Window returns the most recent n non-system turns, oldest first.
func Window(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	filtered := make([]Turn, 0, len(history))
	for _, t := range history {
		if t.Role == RoleSystem {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}
