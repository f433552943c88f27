package retrieval

import "math"

// Cosine returns the cosine similarity of a and b. The second result is
// false when the vectors differ in length, are empty, or either has zero
// magnitude; the score is then meaningless.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}

	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push parallel vectors just past the bounds.
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return s, true
}
