package generation

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
)

// DefaultIdentity opens every system prompt.
const DefaultIdentity = "You are docrag, a knowledge assistant grounded in the user's documents."

const instructions = `INSTRUCTIONS:
1. Base your answer strictly on the provided CONTEXT below.
2. Respond in the same language as the user's question.
3. Use Markdown formatting.`

// RenderContext formats retrieved chunks as source-tagged blocks separated
// by blank lines.
func RenderContext(chunks []document.Chunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		src := c.Source
		if src == "" {
			src = c.DocumentID
		}
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", src, c.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// SystemPrompt builds the system block for a persona and retrieved context.
func SystemPrompt(identity string, persona Persona, chunks []document.Chunk) string {
	if identity == "" {
		identity = DefaultIdentity
	}
	var b strings.Builder
	b.WriteString(identity)
	b.WriteString("\n\nCURRENT ROLE: ")
	b.WriteString(persona.Directives)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	b.WriteString("\n\nCONTEXT DATA:\n")
	b.WriteString(RenderContext(chunks))
	return b.String()
}

// FlattenPrompt renders the system block and history as one prompt for
// providers without a chat format.
func FlattenPrompt(system string, history []conversation.Turn) string {
	lines := make([]string, len(history))
	for i, t := range history {
		lines[i] = strings.ToUpper(string(t.Role)) + ": " + t.Content
	}
	return system + "\n\nChat History:\n" + strings.Join(lines, "\n") + "\n\nMODEL ANSWER:"
}
