// Package generation produces grounded answers from retrieved chunks.
//
// A Generator assembles a system prompt from a persona and the retrieved
// context, keeps a bounded window of the conversation, and dispatches to
// one of four providers:
//
//   - gemini: structured multi-turn requests with an API key header
//   - openai and openrouter: chat-completions requests with a bearer token
//   - ollama: a single flattened prompt sent to a local server
//
// Respond never returns an error. Any failure becomes an answer that starts
// with ErrorMarker so the conversation always receives a displayable turn.
package generation
