package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/model"
	"github.com/spigell/job-matcher/internal/notify"
	"github.com/spigell/job-matcher/internal/store"
)

type stubScorer struct {
	mu      sync.Mutex
	scores  map[string]int
	failing map[string]bool
	panics  map[string]bool
	resumes map[string]string
	calls   int
}

func newStubScorer(scores map[string]int) *stubScorer {
	return &stubScorer{
		scores:  scores,
		failing: map[string]bool{},
		panics:  map[string]bool{},
		resumes: map[string]string{},
	}
}

func (s *stubScorer) Score(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) matching.Result {
	return s.ScoreWithResume(ctx, job, cand, cand.ResumeURI)
}

func (s *stubScorer) ScoreWithResume(_ context.Context, _ *model.JobPosting, cand *model.CandidateProfile, resumeURI string) matching.Result {
	s.mu.Lock()
	s.calls++
	s.resumes[cand.ID] = resumeURI
	panics, failing, score := s.panics[cand.ID], s.failing[cand.ID], s.scores[cand.ID]
	s.mu.Unlock()

	if panics {
		panic("scoring backend exploded")
	}
	if failing {
		return matching.Result{
			Strategy:      matching.StrategyNone,
			Notes:         matching.NoteFailed,
			MatchedSkills: []string{},
			MissingSkills: []string{},
			Err:           errors.New("backend down"),
		}
	}
	return matching.Result{
		Score:         score,
		Strategy:      matching.StrategyEmbedding,
		Notes:         matching.NoteEmbedding,
		MatchedSkills: []string{"go"},
		MissingSkills: []string{},
	}
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingOutbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (o *recordingOutbox) Enqueue(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *recordingOutbox) candidates() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		ids = append(ids, m.CandidateID)
	}
	return ids
}

type countingEnsurer struct {
	mu    sync.Mutex
	seen  []string
	err   error
	store *store.Memory
}

func (e *countingEnsurer) Ensure(ctx context.Context, cand *model.CandidateProfile) (bool, error) {
	e.mu.Lock()
	e.seen = append(e.seen, cand.ID)
	e.mu.Unlock()
	if e.err != nil {
		return false, e.err
	}
	cand.Embedding = []float32{1}
	if e.store != nil {
		return true, e.store.SaveCandidateEmbedding(ctx, cand.ID, cand.Embedding, "")
	}
	return true, nil
}

// pagingStore counts page reads and can fail upserts for chosen candidates.
type pagingStore struct {
	*store.Memory
	mu         sync.Mutex
	pages      int
	failUpsert map[string]bool
}

func (p *pagingStore) ListEligibleCandidates(ctx context.Context, afterID string, limit int) ([]*model.CandidateProfile, error) {
	p.mu.Lock()
	p.pages++
	p.mu.Unlock()
	return p.Memory.ListEligibleCandidates(ctx, afterID, limit)
}

func (p *pagingStore) UpsertMatch(ctx context.Context, rec *model.MatchRecord) (bool, error) {
	if p.failUpsert[rec.CandidateID] {
		return false, errors.New("unique constraint check timed out")
	}
	return p.Memory.UpsertMatch(ctx, rec)
}

func seededMemory(n int) *store.Memory {
	mem := store.NewMemory()
	mem.PutJob(&model.JobPosting{ID: "job-1", Title: "Backend Engineer", Status: model.JobOpen, RequiredSkills: []string{"go"}})
	for i := 1; i <= n; i++ {
		mem.PutCandidate(&model.CandidateProfile{
			ID:        candidate(i),
			FirstName: fmt.Sprintf("Candidate %d", i),
			Email:     fmt.Sprintf("c%d@example.com", i),
			Skills:    []string{"go"},
			Active:    true,
			JobAlerts: true,
		})
	}
	return mem
}

func candidate(i int) string { return fmt.Sprintf("c%02d", i) }
