package matching

import "math"

// CosineSimilarity returns the cosine of the angle between a and b remapped from [-1,1]
// to [0,1] via (cos+1)/2. Empty vectors, zero norms and mismatched lengths yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cos) {
		return 0
	}

	return clamp((cos+1)/2, 0, 1)
}

// SimilarityScore converts a [0,1] similarity into an integer 0-100 score.
func SimilarityScore(similarity float64) int {
	return int(math.Round(clamp(similarity, 0, 1) * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
