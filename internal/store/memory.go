package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/spigell/job-matcher/internal/model"
)

// Memory is an in-process Store. Values are copied on the way in and out so callers never
// share state with it.
type Memory struct {
	mu         sync.RWMutex
	jobs       map[string]model.JobPosting
	candidates map[string]model.CandidateProfile
	matches    map[model.MatchKey]model.MatchRecord

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[string]model.JobPosting),
		candidates: make(map[string]model.CandidateProfile),
		matches:    make(map[model.MatchKey]model.MatchRecord),
		now:        time.Now,
	}
}

func (m *Memory) PutJob(job *model.JobPosting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = copyJob(job)
}

func (m *Memory) PutCandidate(cand *model.CandidateProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[cand.ID] = copyCandidate(cand)
}

// PutMatch stores rec as is, as an application submitted outside the pipeline would be.
func (m *Memory) PutMatch(rec *model.MatchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[rec.Key()] = copyRecord(rec)
}

func (m *Memory) GetJob(_ context.Context, id string) (*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, JobNotFound(id)
	}
	out := copyJob(&job)
	return &out, nil
}

func (m *Memory) ListOpenJobIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.jobs))
	for id, job := range m.jobs {
		if job.IsOpen() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) GetCandidate(_ context.Context, id string) (*model.CandidateProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cand, ok := m.candidates[id]
	if !ok {
		return nil, CandidateNotFound(id)
	}
	out := copyCandidate(&cand)
	return &out, nil
}

func (m *Memory) ListEligibleCandidates(_ context.Context, afterID string, limit int) ([]*model.CandidateProfile, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.candidates))
	for id, cand := range m.candidates {
		if cand.Eligible() && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	page := make([]*model.CandidateProfile, 0, len(ids))
	for _, id := range ids {
		cand := m.candidates[id]
		out := copyCandidate(&cand)
		page = append(page, &out)
	}
	return page, nil
}

func (m *Memory) SaveCandidateEmbedding(_ context.Context, candidateID string, vector []float32, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cand, ok := m.candidates[candidateID]
	if !ok {
		return CandidateNotFound(candidateID)
	}
	cand.Embedding = slices.Clone(vector)
	cand.EmbeddingFingerprint = fingerprint
	m.candidates[candidateID] = cand
	return nil
}

func (m *Memory) UpsertMatch(_ context.Context, rec *model.MatchRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()
	if existing, ok := m.matches[key]; ok {
		existing.MatchScore = rec.MatchScore
		existing.Details = copyDetails(rec.Details)
		m.matches[key] = existing
		return false, nil
	}

	created := copyRecord(rec)
	if created.Status == "" {
		created.Status = model.StatusApplied
	}
	if created.AppliedAt.IsZero() {
		created.AppliedAt = m.now()
	}
	m.matches[key] = created
	return true, nil
}

func (m *Memory) GetMatch(_ context.Context, jobID, candidateID string) (*model.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.matches[model.MatchKey{JobID: jobID, CandidateID: candidateID}]
	if !ok {
		return nil, MatchNotFound(jobID, candidateID)
	}
	out := copyRecord(&rec)
	return &out, nil
}

func (m *Memory) ListApplicants(_ context.Context, jobID string) ([]model.Applicant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var applicants []model.Applicant
	for key, rec := range m.matches {
		if key.JobID != jobID {
			continue
		}
		cand, ok := m.candidates[key.CandidateID]
		if !ok {
			continue
		}
		r := copyRecord(&rec)
		c := copyCandidate(&cand)
		applicants = append(applicants, model.Applicant{Record: &r, Candidate: &c})
	}

	sort.Slice(applicants, func(i, j int) bool {
		return applicants[i].Record.CandidateID < applicants[j].Record.CandidateID
	})
	return applicants, nil
}

func (m *Memory) UpdateMatchScore(_ context.Context, jobID, candidateID string, score int, details model.MatchDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.MatchKey{JobID: jobID, CandidateID: candidateID}
	rec, ok := m.matches[key]
	if !ok {
		return MatchNotFound(jobID, candidateID)
	}
	rec.MatchScore = score
	rec.Details = copyDetails(details)
	m.matches[key] = rec
	return nil
}

// MatchCount returns the number of stored match records.
func (m *Memory) MatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

func copyJob(job *model.JobPosting) model.JobPosting {
	out := *job
	out.RequiredSkills = slices.Clone(job.RequiredSkills)
	return out
}

func copyCandidate(cand *model.CandidateProfile) model.CandidateProfile {
	out := *cand
	out.Skills = slices.Clone(cand.Skills)
	out.Embedding = slices.Clone(cand.Embedding)
	return out
}

func copyRecord(rec *model.MatchRecord) model.MatchRecord {
	out := *rec
	out.Details = copyDetails(rec.Details)
	return out
}

func copyDetails(d model.MatchDetails) model.MatchDetails {
	d.MatchedSkills = slices.Clone(d.MatchedSkills)
	d.MissingSkills = slices.Clone(d.MissingSkills)
	return d
}
