package generation

import (
	"context"

	"github.com/fyrsmithlabs/docrag/internal/apiclient"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Ollama talks to a local Ollama server. No credential is needed.
type Ollama struct {
	model  string
	client *apiclient.Client
}

// NewOllama creates the Ollama provider.
func NewOllama(cfg ProviderConfig) (*Ollama, error) {
	client, err := newClient(cfg, defaultOllamaBaseURL, nil)
	if err != nil {
		return nil, err
	}
	return &Ollama{model: modelOr(cfg.Model, defaultOllamaModel), client: client}, nil
}

// Name implements Provider.
func (o *Ollama) Name() string { return ProviderOllama }

// Complete implements Provider. The history is flattened into one prompt.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	var resp ollamaResponse
	err := o.client.PostJSON(ctx, "/api/generate", ollamaRequest{
		Model:  o.model,
		Prompt: FlattenPrompt(req.System, req.History),
		Stream: false,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}
