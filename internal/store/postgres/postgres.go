// Package postgres implements the store contracts on PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/spigell/job-matcher/internal/model"
	"github.com/spigell/job-matcher/internal/store"
)

const (
	defaultMaxConns = 10

	candidateColumns = `id, first_name, last_name, email, skills, experience_years, current_position,
		current_company, current_location, preferred_location, resume_uri, embedding,
		embedding_fingerprint, job_alerts, active`
)

// Store is a pgxpool backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and registers the vector type on every pooled connection.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	config.MaxConns = maxConns
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	var (
		job    model.JobPosting
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, recruiter_id, title, description, required_skills, location, remote,
			salary_min, salary_max, status
		 FROM jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.RecruiterID, &job.Title, &job.Description, &job.RequiredSkills,
		&job.Location, &job.Remote, &job.Salary.Min, &job.Salary.Max, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.JobNotFound(id)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}

func (s *Store) ListOpenJobIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM jobs WHERE status = 'open' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	return ids, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	cand, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.CandidateNotFound(id)
		}
		return nil, fmt.Errorf("get candidate %s: %w", id, err)
	}
	return cand, nil
}

// ListEligibleCandidates uses keyset pagination on the primary key.
func (s *Store) ListEligibleCandidates(ctx context.Context, afterID string, limit int) ([]*model.CandidateProfile, error) {
	if limit <= 0 {
		limit = store.DefaultPageSize
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateColumns+`
		 FROM candidates
		 WHERE active AND job_alerts AND id > $1
		 ORDER BY id
		 LIMIT $2`, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list eligible candidates: %w", err)
	}
	defer rows.Close()

	var page []*model.CandidateProfile
	for rows.Next() {
		cand, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		page = append(page, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list eligible candidates: %w", err)
	}
	return page, nil
}

func (s *Store) SaveCandidateEmbedding(ctx context.Context, candidateID string, vector []float32, fingerprint string) error {
	var embedding *pgvector.Vector
	if len(vector) > 0 {
		v := pgvector.NewVector(vector)
		embedding = &v
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET embedding = $2, embedding_fingerprint = $3 WHERE id = $1`,
		candidateID, embedding, fingerprint,
	)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", candidateID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.CandidateNotFound(candidateID)
	}
	return nil
}

// UpsertMatch relies on the (job_id, candidate_id) primary key. xmax is zero only for a row
// inserted by this statement.
func (s *Store) UpsertMatch(ctx context.Context, rec *model.MatchRecord) (bool, error) {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return false, fmt.Errorf("marshal match details: %w", err)
	}

	status := rec.Status
	if status == "" {
		status = model.StatusApplied
	}

	var inserted bool
	err = s.pool.QueryRow(ctx,
		`INSERT INTO match_records (job_id, candidate_id, match_score, details, status, resume_uri)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id, candidate_id)
		 DO UPDATE SET match_score = EXCLUDED.match_score, details = EXCLUDED.details
		 RETURNING (xmax = 0)`,
		rec.JobID, rec.CandidateID, rec.MatchScore, details, string(status), rec.ResumeURI,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert match %s/%s: %w", rec.JobID, rec.CandidateID, err)
	}
	return inserted, nil
}

func (s *Store) GetMatch(ctx context.Context, jobID, candidateID string) (*model.MatchRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT job_id, candidate_id, match_score, details, status, resume_uri, applied_at
		 FROM match_records WHERE job_id = $1 AND candidate_id = $2`, jobID, candidateID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.MatchNotFound(jobID, candidateID)
		}
		return nil, fmt.Errorf("get match %s/%s: %w", jobID, candidateID, err)
	}
	return rec, nil
}

func (s *Store) ListApplicants(ctx context.Context, jobID string) ([]model.Applicant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.job_id, m.candidate_id, m.match_score, m.details, m.status, m.resume_uri, m.applied_at,
			c.id, c.first_name, c.last_name, c.email, c.skills, c.experience_years, c.current_position,
			c.current_company, c.current_location, c.preferred_location, c.resume_uri, c.embedding,
			c.embedding_fingerprint, c.job_alerts, c.active
		 FROM match_records m
		 JOIN candidates c ON c.id = m.candidate_id
		 WHERE m.job_id = $1
		 ORDER BY m.candidate_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applicants of %s: %w", jobID, err)
	}
	defer rows.Close()

	var applicants []model.Applicant
	for rows.Next() {
		var (
			rec       model.MatchRecord
			status    string
			details   []byte
			cand      model.CandidateProfile
			embedding *pgvector.Vector
		)
		err := rows.Scan(&rec.JobID, &rec.CandidateID, &rec.MatchScore, &details, &status, &rec.ResumeURI, &rec.AppliedAt,
			&cand.ID, &cand.FirstName, &cand.LastName, &cand.Email, &cand.Skills, &cand.ExperienceYears,
			&cand.CurrentPosition, &cand.CurrentCompany, &cand.CurrentLocation, &cand.PreferredLocation,
			&cand.ResumeURI, &embedding, &cand.EmbeddingFingerprint, &cand.JobAlerts, &cand.Active)
		if err != nil {
			return nil, fmt.Errorf("scan applicant: %w", err)
		}
		if err := decodeDetails(details, &rec.Details); err != nil {
			return nil, err
		}
		rec.Status = model.MatchStatus(status)
		if embedding != nil {
			cand.Embedding = embedding.Slice()
		}
		applicants = append(applicants, model.Applicant{Record: &rec, Candidate: &cand})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applicants of %s: %w", jobID, err)
	}
	return applicants, nil
}

func (s *Store) UpdateMatchScore(ctx context.Context, jobID, candidateID string, score int, details model.MatchDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal match details: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE match_records SET match_score = $3, details = $4 WHERE job_id = $1 AND candidate_id = $2`,
		jobID, candidateID, score, payload,
	)
	if err != nil {
		return fmt.Errorf("update match score %s/%s: %w", jobID, candidateID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.MatchNotFound(jobID, candidateID)
	}
	return nil
}

func scanCandidate(row pgx.Row) (*model.CandidateProfile, error) {
	var (
		cand      model.CandidateProfile
		embedding *pgvector.Vector
	)
	err := row.Scan(&cand.ID, &cand.FirstName, &cand.LastName, &cand.Email, &cand.Skills,
		&cand.ExperienceYears, &cand.CurrentPosition, &cand.CurrentCompany, &cand.CurrentLocation,
		&cand.PreferredLocation, &cand.ResumeURI, &embedding, &cand.EmbeddingFingerprint,
		&cand.JobAlerts, &cand.Active)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		cand.Embedding = embedding.Slice()
	}
	return &cand, nil
}

func scanRecord(row pgx.Row) (*model.MatchRecord, error) {
	var (
		rec     model.MatchRecord
		status  string
		details []byte
	)
	if err := row.Scan(&rec.JobID, &rec.CandidateID, &rec.MatchScore, &details, &status, &rec.ResumeURI, &rec.AppliedAt); err != nil {
		return nil, err
	}
	if err := decodeDetails(details, &rec.Details); err != nil {
		return nil, err
	}
	rec.Status = model.MatchStatus(status)
	return &rec, nil
}

func decodeDetails(data []byte, details *model.MatchDetails) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, details); err != nil {
		return fmt.Errorf("decode match details: %w", err)
	}
	return nil
}
