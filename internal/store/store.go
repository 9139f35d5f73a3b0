package store

import (
	"context"

	"github.com/spigell/job-matcher/internal/model"
)

// DefaultPageSize bounds one page of eligible candidates.
const DefaultPageSize = 100

// Jobs reads job postings.
type Jobs interface {
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)
	ListOpenJobIDs(ctx context.Context) ([]string, error)
}

// Candidates reads candidate profiles and writes their cached embeddings.
type Candidates interface {
	GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error)
	// ListEligibleCandidates returns up to limit active candidates opted into job alerts with
	// an id greater than afterID, ordered by id.
	ListEligibleCandidates(ctx context.Context, afterID string, limit int) ([]*model.CandidateProfile, error)
	SaveCandidateEmbedding(ctx context.Context, candidateID string, vector []float32, fingerprint string) error
}

// Matches reads and writes match records.
type Matches interface {
	// UpsertMatch creates the record or replaces score and details of the existing one.
	// It reports whether a new record was created.
	UpsertMatch(ctx context.Context, rec *model.MatchRecord) (bool, error)
	GetMatch(ctx context.Context, jobID, candidateID string) (*model.MatchRecord, error)
	// ListApplicants returns every record of the job joined with its candidate.
	ListApplicants(ctx context.Context, jobID string) ([]model.Applicant, error)
	UpdateMatchScore(ctx context.Context, jobID, candidateID string, score int, details model.MatchDetails) error
}

// Store is the complete persistence collaborator.
type Store interface {
	Jobs
	Candidates
	Matches
}
