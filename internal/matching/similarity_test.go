package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: 0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0.5},
		{name: "empty", a: nil, b: []float32{1}, want: 0},
		{name: "zero norm", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarityStaysInUnitInterval(t *testing.T) {
	vectors := [][]float32{
		{3, -4}, {-3, 4}, {0.5, 0.5}, {-1, -2}, {10, 0.1},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			sim := CosineSimilarity(a, b)
			assert.GreaterOrEqual(t, sim, 0.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
		assert.InDelta(t, 1, CosineSimilarity(a, a), 1e-6)
	}
}

func TestSimilarityScore(t *testing.T) {
	assert.Equal(t, 0, SimilarityScore(0))
	assert.Equal(t, 50, SimilarityScore(0.5))
	assert.Equal(t, 87, SimilarityScore(0.8749))
	assert.Equal(t, 100, SimilarityScore(1.2))
}
