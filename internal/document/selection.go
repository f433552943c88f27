package document

// ProviderSelection is the external configuration value naming the embedding
// and generation providers together with their credentials and endpoints.
// The core validates credentials only by presence.
type ProviderSelection struct {
	Embedding      string `json:"embedding"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	Generation     string `json:"generation"`
	Model          string `json:"model,omitempty"`

	GeminiKey     string `json:"-"`
	OpenAIKey     string `json:"-"`
	OpenRouterKey string `json:"-"`

	OllamaURL     string `json:"ollama_url,omitempty"`
	OpenAIURL     string `json:"openai_url,omitempty"`
	GeminiURL     string `json:"gemini_url,omitempty"`
	OpenRouterURL string `json:"openrouter_url,omitempty"`

	// CacheDir is where the local embedding model is cached.
	CacheDir string `json:"cache_dir,omitempty"`
}
