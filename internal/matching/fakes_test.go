package matching

import (
	"context"
	"errors"
	"sync"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/model"
)

type stubGenerator struct {
	mu         sync.Mutex
	extract    string
	extractErr error
	score      string
	scoreErr   error
	inputs     []string
	docs       []ai.Document
}

func (g *stubGenerator) GenerateText(_ context.Context, _ string, input string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, input)
	return g.score, g.scoreErr
}

func (g *stubGenerator) GenerateFromDocument(_ context.Context, _ string, doc ai.Document) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs = append(g.docs, doc)
	return g.extract, g.extractErr
}

type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	vector  []float32
	err     error
	calls   int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.vector, nil
}

func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubFetcher struct {
	doc   ai.Document
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, uri string) (ai.Document, error) {
	f.calls++
	if f.err != nil {
		return ai.Document{}, f.err
	}
	doc := f.doc
	doc.URI = uri
	return doc, nil
}

type savedEmbedding struct {
	vector      []float32
	fingerprint string
}

type stubEmbeddingStore struct {
	mu    sync.Mutex
	saved map[string]savedEmbedding
	err   error
}

func (s *stubEmbeddingStore) SaveCandidateEmbedding(_ context.Context, candidateID string, vector []float32, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]savedEmbedding)
	}
	s.saved[candidateID] = savedEmbedding{vector: vector, fingerprint: fingerprint}
	return nil
}

type panickingScorer struct{}

func (panickingScorer) Score(context.Context, *model.JobPosting, *model.CandidateProfile) (EmbeddingScore, error) {
	panic("boom")
}

var errBackendDown = errors.New("backend down")

func testJob() *model.JobPosting {
	return &model.JobPosting{
		ID:             "job-1",
		Title:          "Backend Engineer",
		Description:    "Build Go services on Postgres.",
		RequiredSkills: []string{"Go", " PostgreSQL ", "Kubernetes"},
		Location:       "Berlin",
		Status:         model.JobOpen,
	}
}

func testCandidate() *model.CandidateProfile {
	return &model.CandidateProfile{
		ID:                "cand-1",
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Skills:            []string{"go", "postgresql", "Python"},
		ExperienceYears:   6,
		CurrentPosition:   "Software Engineer",
		CurrentLocation:   "Berlin, Germany",
		PreferredLocation: "Remote",
		Active:            true,
		JobAlerts:         true,
	}
}
