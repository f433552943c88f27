package app

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// Answer is the outcome of one chat exchange.
type Answer struct {
	Question conversation.Turn  `json:"question"`
	Reply    conversation.Turn  `json:"reply"`
	Sources  []retrieval.Scored `json:"sources"`
}

// Search returns the chunks most similar to query. Failures yield no
// results.
func (a *App) Search(ctx context.Context, query string) ([]retrieval.Scored, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyInput
	}
	return stripEmbeddings(a.retriever.Retrieve(ctx, query)), nil
}

// Chat answers question with persona using the stored conversation and the
// retrieved chunks, then stores the question and the reply. The reply cites
// the ids of the chunks it was given. Provider failures are part of the
// reply text, never an error.
func (a *App) Chat(ctx context.Context, question, persona string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyInput
	}
	ctx = logging.WithPersona(ctx, persona)

	history, err := a.store.Turns(ctx)
	if err != nil {
		return nil, err
	}
	asked := conversation.NewTurn(conversation.RoleUser, question)

	hits := a.retriever.Retrieve(ctx, question)
	chunks := make([]document.Chunk, len(hits))
	citations := make([]string, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
		citations[i] = h.Chunk.ID
	}

	text := a.generator.Respond(ctx, append(history, asked), chunks, persona)
	reply := conversation.NewTurn(conversation.RoleModel, text, citations...)

	if err := a.store.AddTurns(ctx, []conversation.Turn{asked, reply}); err != nil {
		return nil, err
	}
	return &Answer{Question: asked, Reply: reply, Sources: stripEmbeddings(hits)}, nil
}

// Turns returns the stored conversation.
func (a *App) Turns(ctx context.Context) ([]conversation.Turn, error) {
	return a.store.Turns(ctx)
}

// ClearTurns deletes the conversation.
func (a *App) ClearTurns(ctx context.Context) error {
	return a.store.DeleteAllTurns(ctx)
}

// DeleteTurn deletes one turn.
func (a *App) DeleteTurn(ctx context.Context, id string) error {
	return a.store.DeleteTurn(ctx, id)
}

// MoveTurn records the display position of a turn.
func (a *App) MoveTurn(ctx context.Context, id string, x, y float64) error {
	return a.store.UpdateTurnPosition(ctx, id, x, y)
}

func stripEmbeddings(hits []retrieval.Scored) []retrieval.Scored {
	out := make([]retrieval.Scored, len(hits))
	for i, h := range hits {
		h.Chunk.Embedding = nil
		out[i] = h
	}
	return out
}
