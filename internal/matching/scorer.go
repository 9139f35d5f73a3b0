package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/model"
)

const (
	NoteATS               = "ATS score computed via resume-grounded scoring"
	NoteEmbedding         = "Score computed via profile embedding similarity"
	NoteEmbeddingFallback = NoteEmbedding + " (resume-grounded scoring failed)"
	NoteFailed            = "Scoring failed: no strategy produced a score"
)

// Strategy names the method that produced a score.
type Strategy string

const (
	StrategyATS       Strategy = "ats"
	StrategyEmbedding Strategy = "embedding"
	StrategyNone      Strategy = "none"
)

// ResumePolicy decides when a resume URI triggers resume-grounded scoring.
type ResumePolicy string

const (
	// ResumeAlways tries resume scoring for any present URI.
	ResumeAlways ResumePolicy = "always"
	// ResumeKnownTypes skips resumes whose extension maps to no known document type.
	ResumeKnownTypes ResumePolicy = "known-types"
	// ResumeNever always uses embedding similarity.
	ResumeNever ResumePolicy = "never"
)

func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch p := ResumePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ResumeAlways, nil
	case ResumeAlways, ResumeKnownTypes, ResumeNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown resume policy %q", s)
	}
}

func (p ResumePolicy) allows(uri string) bool {
	if strings.TrimSpace(uri) == "" {
		return false
	}
	switch p {
	case ResumeNever:
		return false
	case ResumeKnownTypes:
		_, ok := knownMIMEType(uri)
		return ok
	default:
		return true
	}
}

// ResumeScorer scores a resume document against a job.
type ResumeScorer interface {
	ComputeATSScore(ctx context.Context, job *model.JobPosting, resumeURI string) (*ATSResult, error)
}

// ProfileScorer scores a candidate profile against a job without a resume.
type ProfileScorer interface {
	Score(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) (EmbeddingScore, error)
}

// Result is the outcome of Scorer.Score. Err holds the last strategy failure, if any; it is
// informational and never means the result is unusable.
type Result struct {
	Score         int
	MatchedSkills []string
	MissingSkills []string
	Notes         string
	Strategy      Strategy
	SkillsMatch   int
	LocationMatch int
	Err           error
}

// Details converts the result into the breakdown stored on a match record.
func (r Result) Details() model.MatchDetails {
	return model.MatchDetails{
		SkillsMatch:   r.SkillsMatch,
		LocationMatch: r.LocationMatch,
		MatchedSkills: r.MatchedSkills,
		MissingSkills: r.MissingSkills,
		Notes:         r.Notes,
	}
}

// Scorer runs resume-grounded scoring first and embedding similarity as fallback.
// Score never returns an error and never panics.
type Scorer struct {
	resume  ResumeScorer
	profile ProfileScorer
	policy  ResumePolicy
	logger  *zap.Logger
}

func NewScorer(resume ResumeScorer, profile ProfileScorer, policy ResumePolicy, log *zap.Logger) *Scorer {
	if policy == "" {
		policy = ResumeAlways
	}
	return &Scorer{
		resume:  resume,
		profile: profile,
		policy:  policy,
		logger:  logger.WithFields(log),
	}
}

// Score scores the candidate using the resume on the profile.
func (s *Scorer) Score(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) Result {
	resumeURI := ""
	if cand != nil {
		resumeURI = cand.ResumeURI
	}
	return s.ScoreWithResume(ctx, job, cand, resumeURI)
}

// ScoreWithResume scores the candidate using resumeURI instead of the profile resume.
func (s *Scorer) ScoreWithResume(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile, resumeURI string) (result Result) {
	log := s.logger
	if job != nil && cand != nil {
		log = logger.ForMatch(s.logger, job.ID, cand.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("scoring panicked", zap.Any("panic", r))
			result = failed(job, cand, fmt.Errorf("scoring panicked: %v", r))
		}
	}()

	if job == nil || cand == nil {
		return failed(job, cand, errors.New("job and candidate are required"))
	}

	var atsErr error
	if s.resume != nil && s.policy.allows(resumeURI) {
		ats, err := s.resume.ComputeATSScore(ctx, job, resumeURI)
		if err == nil {
			skills := cand.Skills
			if ats.Profile != nil && len(ats.Profile.Skills) > 0 {
				skills = ats.Profile.Skills
			}
			res := newResult(job, cand, ats.Score, MatchSkills(job.RequiredSkills, skills), StrategyATS, NoteATS)
			log.Debug("candidate scored", zap.String(logger.FieldStrategy, string(StrategyATS)), zap.Int("score", res.Score))
			return res
		}
		atsErr = err
		log.Warn("resume-grounded scoring failed, falling back to embedding similarity",
			zap.String("resume_uri", resumeURI),
			zap.Error(err),
		)
	}

	if s.profile == nil {
		return failed(job, cand, errors.Join(atsErr, errors.New("no embedding scorer configured")))
	}

	emb, err := s.profile.Score(ctx, job, cand)
	if err != nil {
		log.Warn("embedding scoring failed", zap.Error(err))
		return failed(job, cand, errors.Join(atsErr, err))
	}

	notes := NoteEmbedding
	if atsErr != nil {
		notes = NoteEmbeddingFallback
	}
	res := newResult(job, cand, emb.Score, SkillMatch{Matched: emb.MatchedSkills, Missing: emb.MissingSkills}, StrategyEmbedding, notes)
	res.Err = atsErr
	log.Debug("candidate scored", zap.String(logger.FieldStrategy, string(StrategyEmbedding)), zap.Int("score", res.Score))
	return res
}

func newResult(job *model.JobPosting, cand *model.CandidateProfile, score int, skills SkillMatch, strategy Strategy, notes string) Result {
	return Result{
		Score:         clampScore(score),
		MatchedSkills: skills.Matched,
		MissingSkills: skills.Missing,
		Notes:         notes,
		Strategy:      strategy,
		SkillsMatch:   skills.Percent(),
		LocationMatch: LocationMatch(job, cand),
	}
}

// failed is the total-failure result with score 0. Matched and missing skills are always
// computed from the stored profile, like every other result, so they are filled here too.
func failed(job *model.JobPosting, cand *model.CandidateProfile, err error) Result {
	res := Result{
		MatchedSkills: []string{},
		MissingSkills: []string{},
		Notes:         NoteFailed,
		Strategy:      StrategyNone,
		Err:           err,
	}
	if job != nil && cand != nil {
		skills := MatchSkills(job.RequiredSkills, cand.Skills)
		res.MatchedSkills = skills.Matched
		res.MissingSkills = skills.Missing
		res.SkillsMatch = skills.Percent()
		res.LocationMatch = LocationMatch(job, cand)
	}
	return res
}

// LocationMatch is 100 when the job is remote or either candidate location contains the job
// location (case-insensitive), else 0.
func LocationMatch(job *model.JobPosting, cand *model.CandidateProfile) int {
	if job == nil || cand == nil {
		return 0
	}
	if job.Remote {
		return 100
	}
	want := strings.ToLower(strings.TrimSpace(job.Location))
	if want == "" {
		return 0
	}
	for _, loc := range []string{cand.CurrentLocation, cand.PreferredLocation} {
		if loc = strings.ToLower(strings.TrimSpace(loc)); loc != "" && strings.Contains(loc, want) {
			return 100
		}
	}
	return 0
}

func clampScore(score int) int {
	return min(max(score, 0), 100)
}
