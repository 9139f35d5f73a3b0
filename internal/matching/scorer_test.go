package matching

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/model"
)

func newTestScorer(gen *stubGenerator, fetcher ResumeFetcher, embedder *stubEmbedder, policy ResumePolicy) *Scorer {
	return NewScorer(
		NewATSScorer(gen, fetcher, zap.NewNop(), 0),
		NewEmbeddingScorer(NewEmbeddingCache(embedder, nil, zap.NewNop())),
		policy,
		zap.NewNop(),
	)
}

func TestScorerUsesResumeFirst(t *testing.T) {
	gen := &stubGenerator{extract: extractedFacts, score: "91"}
	embedder := &stubEmbedder{vector: []float32{1}}
	scorer := newTestScorer(gen, pdfFetcher(), embedder, ResumeAlways)

	cand := testCandidate()
	cand.ResumeURI = "https://files.example/cv.pdf"

	got := scorer.Score(context.Background(), testJob(), cand)
	assert.Equal(t, 91, got.Score)
	assert.Equal(t, StrategyATS, got.Strategy)
	assert.Equal(t, NoteATS, got.Notes)
	// Resume skills take precedence over the stored profile.
	assert.Equal(t, []string{"go", "kubernetes"}, got.MatchedSkills)
	assert.Equal(t, []string{"postgresql"}, got.MissingSkills)
	assert.Equal(t, 67, got.SkillsMatch)
	assert.Equal(t, 100, got.LocationMatch)
	assert.NoError(t, got.Err)
	assert.Zero(t, embedder.callCount())
}

func TestScorerFallsBackWhenResumeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	unreachable := srv.URL + "/cv.pdf"
	srv.Close()

	gen := &stubGenerator{extract: extractedFacts, score: "99"}
	embedder := &stubEmbedder{vector: []float32{0.2, 0.4}}
	scorer := newTestScorer(gen, NewHTTPResumeFetcher(0), embedder, ResumeAlways)

	cand := testCandidate()
	cand.ResumeURI = unreachable

	got := scorer.Score(context.Background(), testJob(), cand)
	assert.Equal(t, StrategyEmbedding, got.Strategy)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, NoteEmbeddingFallback, got.Notes)
	assert.Equal(t, []string{"go", "postgresql"}, got.MatchedSkills)
	assert.Error(t, got.Err)
	assert.Empty(t, gen.docs)
}

func TestScorerFallsBackOnParseFailure(t *testing.T) {
	gen := &stubGenerator{extract: "no facts here"}
	scorer := newTestScorer(gen, pdfFetcher(), &stubEmbedder{vector: []float32{1, 0}}, ResumeAlways)

	cand := testCandidate()
	cand.ResumeURI = "cv.pdf"

	got := scorer.Score(context.Background(), testJob(), cand)
	assert.Equal(t, StrategyEmbedding, got.Strategy)
	assert.Empty(t, gen.inputs)
}

func TestScorerWithoutResumeUsesEmbedding(t *testing.T) {
	gen := &stubGenerator{}
	fetcher := pdfFetcher()
	scorer := newTestScorer(gen, fetcher, &stubEmbedder{vector: []float32{1, 0}}, ResumeAlways)

	got := scorer.Score(context.Background(), testJob(), testCandidate())
	assert.Equal(t, StrategyEmbedding, got.Strategy)
	assert.Equal(t, NoteEmbedding, got.Notes)
	assert.NoError(t, got.Err)
	assert.Zero(t, fetcher.calls)
}

func TestScorerResumePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  ResumePolicy
		uri     string
		fetched bool
	}{
		{name: "always unknown type", policy: ResumeAlways, uri: "https://files.example/resume", fetched: true},
		{name: "known types skips unknown", policy: ResumeKnownTypes, uri: "https://files.example/resume.xyz", fetched: false},
		{name: "known types keeps pdf", policy: ResumeKnownTypes, uri: "https://files.example/resume.pdf?sig=1", fetched: true},
		{name: "never", policy: ResumeNever, uri: "https://files.example/resume.pdf", fetched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := pdfFetcher()
			gen := &stubGenerator{extract: extractedFacts, score: "70"}
			scorer := newTestScorer(gen, fetcher, &stubEmbedder{vector: []float32{1}}, tt.policy)

			cand := testCandidate()
			cand.ResumeURI = tt.uri
			scorer.Score(context.Background(), testJob(), cand)

			assert.Equal(t, tt.fetched, fetcher.calls == 1)
		})
	}
}

func TestScorerScoreWithResumeOverridesProfile(t *testing.T) {
	fetcher := pdfFetcher()
	gen := &stubGenerator{extract: extractedFacts, score: "64"}
	scorer := newTestScorer(gen, fetcher, &stubEmbedder{vector: []float32{1}}, ResumeAlways)

	got := scorer.ScoreWithResume(context.Background(), testJob(), testCandidate(), "submitted.pdf")
	assert.Equal(t, 64, got.Score)
	require.Len(t, gen.docs, 1)
	assert.Equal(t, "submitted.pdf", gen.docs[0].URI)
}

func TestScorerTotalFailureNeverErrors(t *testing.T) {
	cand := testCandidate()
	cand.ResumeURI = "cv.pdf"

	scorer := newTestScorer(
		&stubGenerator{extractErr: errBackendDown},
		pdfFetcher(),
		&stubEmbedder{err: errBackendDown},
		ResumeAlways,
	)

	got := scorer.Score(context.Background(), testJob(), cand)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, StrategyNone, got.Strategy)
	assert.Equal(t, NoteFailed, got.Notes)
	assert.ErrorIs(t, got.Err, errBackendDown)
	assert.Equal(t, []string{"go", "postgresql"}, got.MatchedSkills)
	assert.Equal(t, []string{"kubernetes"}, got.MissingSkills)
}

func TestScorerRecoversFromPanic(t *testing.T) {
	scorer := NewScorer(nil, panickingScorer{}, ResumeAlways, zap.NewNop())

	var got Result
	require.NotPanics(t, func() {
		got = scorer.Score(context.Background(), testJob(), testCandidate())
	})
	assert.Equal(t, NoteFailed, got.Notes)
	assert.Error(t, got.Err)
}

func TestScorerDetails(t *testing.T) {
	scorer := newTestScorer(&stubGenerator{}, pdfFetcher(), &stubEmbedder{vector: []float32{1}}, ResumeNever)

	details := scorer.Score(context.Background(), testJob(), testCandidate()).Details()
	assert.Equal(t, 67, details.SkillsMatch)
	assert.Equal(t, 100, details.LocationMatch)
	assert.Zero(t, details.ExperienceMatch)
	assert.Zero(t, details.SalaryMatch)
	assert.Equal(t, NoteEmbedding, details.Notes)
}

func TestLocationMatch(t *testing.T) {
	tests := []struct {
		name string
		job  model.JobPosting
		cand model.CandidateProfile
		want int
	}{
		{name: "remote", job: model.JobPosting{Location: "Paris", Remote: true}, want: 100},
		{name: "current", job: model.JobPosting{Location: "berlin"}, cand: model.CandidateProfile{CurrentLocation: "Berlin, DE"}, want: 100},
		{name: "preferred", job: model.JobPosting{Location: "Lisbon"}, cand: model.CandidateProfile{PreferredLocation: "lisbon"}, want: 100},
		{name: "elsewhere", job: model.JobPosting{Location: "Lisbon"}, cand: model.CandidateProfile{CurrentLocation: "Oslo"}, want: 0},
		{name: "no location", job: model.JobPosting{}, cand: model.CandidateProfile{CurrentLocation: "Oslo"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocationMatch(&tt.job, &tt.cand))
		})
	}
}

func TestParseResumePolicy(t *testing.T) {
	for in, want := range map[string]ResumePolicy{"": ResumeAlways, "Known-Types": ResumeKnownTypes, "never": ResumeNever} {
		got, err := ParseResumePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseResumePolicy("sometimes")
	assert.Error(t, err)
}
