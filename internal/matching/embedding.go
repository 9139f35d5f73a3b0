package matching

import (
	"context"
	"fmt"

	"github.com/spigell/job-matcher/internal/model"
)

// EmbeddingScore is the result of similarity scoring.
type EmbeddingScore struct {
	Score         int
	Similarity    float64
	MatchedSkills []string
	MissingSkills []string
}

// EmbeddingScorer scores a candidate by cosine similarity between the job and profile embeddings.
type EmbeddingScorer struct {
	cache *EmbeddingCache
}

func NewEmbeddingScorer(cache *EmbeddingCache) *EmbeddingScorer {
	return &EmbeddingScorer{cache: cache}
}

// Score embeds both texts, reusing cached vectors, and rounds similarity*100. Skill sets are
// computed first and returned even when embedding fails.
func (s *EmbeddingScorer) Score(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) (EmbeddingScore, error) {
	skills := MatchSkills(job.RequiredSkills, cand.Skills)
	result := EmbeddingScore{MatchedSkills: skills.Matched, MissingSkills: skills.Missing}

	jobVector, err := s.cache.JobVector(ctx, job)
	if err != nil {
		return result, fmt.Errorf("job embedding: %w", err)
	}

	candidateVector, err := s.cache.CandidateVector(ctx, cand)
	if err != nil {
		return result, fmt.Errorf("candidate embedding: %w", err)
	}

	result.Similarity = CosineSimilarity(jobVector, candidateVector)
	result.Score = SimilarityScore(result.Similarity)

	return result, nil
}
