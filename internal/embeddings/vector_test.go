package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range Normalize([]float32{1, 2, 3, 4, 5}) {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestFastEmbedDimension(t *testing.T) {
	assert.Equal(t, 384, fastEmbedDimension(""))
	assert.Equal(t, 768, fastEmbedDimension("BAAI/bge-base-en-v1.5"))
	assert.Zero(t, fastEmbedDimension("unknown"))
}
