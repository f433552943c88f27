package embeddings

import "math"

// Normalize scales v to unit L2 norm in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// knownDimensions maps model names to their vector length.
var knownDimensions = map[string]int{
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
	"text-embedding-004":                     768,
	"models/text-embedding-004":              768,
	"gemini-embedding-001":                   3072,
	"nomic-embed-text":                       768,
	"mxbai-embed-large":                      1024,
	"all-minilm":                             384,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
}

// fastEmbedDimension returns the dimension of a local model; the empty name
// means the default model.
func fastEmbedDimension(model string) int {
	if model == "" {
		model = defaultFastEmbedModel
	}
	return knownDimensions[model]
}
