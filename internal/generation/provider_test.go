package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/conversation"
	"github.com/fyrsmithlabs/docrag/internal/document"
)

func sampleRequest() Request {
	return Request{
		System: "SYSTEM",
		History: []conversation.Turn{
			conversation.NewTurn(conversation.RoleUser, "first question"),
			conversation.NewTurn(conversation.RoleModel, "first answer"),
			conversation.NewTurn(conversation.RoleUser, "second question"),
		},
		Temperature: 0.3,
	}
}

func TestGemini_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-3-flash-preview:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gemini-3-flash-preview", body["model"])
		contents := body["contents"].([]any)
		require.Len(t, contents, 3)
		assert.Equal(t, map[string]any{"role": "model", "parts": []any{map[string]any{"text": "first answer"}}}, contents[1])
		assert.Equal(t, map[string]any{"systemInstruction": "SYSTEM", "temperature": 0.3}, body["config"])

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`))
	}))
	defer server.Close()

	p, err := NewGemini(ProviderConfig{APIKey: "g-key", BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())

	answer, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hello there", answer)
}

func TestGemini_TopLevelText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"flat answer"}`))
	}))
	defer server.Close()

	p, err := NewGemini(ProviderConfig{APIKey: "k", BaseURL: server.URL, Model: "models/custom"})
	require.NoError(t, err)
	assert.Equal(t, "models/custom", p.Model())

	answer, err := p.Generate(context.Background(), UserContent("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, "flat answer", answer)
}

func TestChat_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Title"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body.Model)
		assert.InDelta(t, 0.3, body.Temperature, 1e-9)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "SYSTEM"},
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
			{Role: "user", Content: "second question"},
		}, body.Messages)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"openai says hi"}}]}`))
	}))
	defer server.Close()

	p, err := NewOpenAI(ProviderConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	answer, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "openai says hi", answer)
}

func TestChat_OpenRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://docrag.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "docrag", r.Header.Get("X-Title"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "meta-llama/llama-3-8b-instruct:free", body.Model)

		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p, err := NewOpenRouter(ProviderConfig{APIKey: "or-key", BaseURL: server.URL, AppURL: "https://docrag.example"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, p.Name())

	answer, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestOllama_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.False(t, body.Stream)
		assert.Equal(t, "SYSTEM\n\nChat History:\nUSER: first question\nMODEL: first answer\nUSER: second question\n\nMODEL ANSWER:", body.Prompt)

		_, _ = w.Write([]byte(`{"response":"local answer","done":true}`))
	}))
	defer server.Close()

	p, err := NewOllama(ProviderConfig{BaseURL: server.URL})
	require.NoError(t, err)

	answer, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer)
}

func TestProviders_MissingCredential(t *testing.T) {
	for _, tag := range []string{ProviderGemini, ProviderOpenAI, ProviderOpenRouter} {
		t.Run(tag, func(t *testing.T) {
			p, err := NewProvider(ProviderConfig{Provider: tag})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), sampleRequest())
			assert.ErrorIs(t, err, ErrMissingCredential)
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "anthropic"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestConfigFromSelection(t *testing.T) {
	sel := document.ProviderSelection{
		Generation:    ProviderOpenRouter,
		Model:         "mistral",
		OpenRouterKey: "or",
		OpenRouterURL: "http://router",
		OpenAIKey:     "unused",
	}
	cfg := ConfigFromSelection(sel)
	assert.Equal(t, ProviderConfig{Provider: ProviderOpenRouter, Model: "mistral", APIKey: "or", BaseURL: "http://router"}, cfg)
}
