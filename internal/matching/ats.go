package matching

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/model"
)

//go:embed extract_prompt.md
var extractInstruction string

//go:embed score_prompt.md
var scoreInstruction string

const defaultMaxLogLength = 200

// ParsedProfile holds the candidate facts extracted from a resume document.
type ParsedProfile struct {
	FullName          string   `json:"full_name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Skills            []string `json:"skills"`
	ExperienceYears   float64  `json:"experience_years"`
	CurrentPosition   string   `json:"current_position"`
	CurrentCompany    string   `json:"current_company"`
	PreferredLocation string   `json:"preferred_location"`
	Education         string   `json:"education"`
}

// ATSResult is the outcome of resume-grounded scoring.
type ATSResult struct {
	Score   int
	Profile *ParsedProfile
	// Raw is the backend answer of the scoring stage.
	Raw string
}

// ATSScorer scores a resume document against a job description in two backend calls:
// fact extraction from the document, then an integer rating of the extracted facts.
type ATSScorer struct {
	generator ai.Generator
	fetcher   ResumeFetcher
	logger    *zap.Logger
	maxLogLen int
}

func NewATSScorer(generator ai.Generator, fetcher ResumeFetcher, log *zap.Logger, maxLogLength int) *ATSScorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &ATSScorer{
		generator: generator,
		fetcher:   fetcher,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// ComputeATSScore fetches the resume at resumeURI and scores it against the job.
// Backend and fetch failures are ExternalServiceErrors, unusable extraction output is a ParseError.
func (s *ATSScorer) ComputeATSScore(ctx context.Context, job *model.JobPosting, resumeURI string) (*ATSResult, error) {
	doc, err := s.fetcher.Fetch(ctx, resumeURI)
	if err != nil {
		return nil, fmt.Errorf("fetch resume: %w", err)
	}

	profile, err := s.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	score, raw, err := s.Rate(ctx, job.Description, profile)
	if err != nil {
		return nil, err
	}

	return &ATSResult{Score: score, Profile: profile, Raw: raw}, nil
}

// Extract asks the backend for the structured candidate facts contained in doc.
func (s *ATSScorer) Extract(ctx context.Context, doc ai.Document) (*ParsedProfile, error) {
	s.logger.Debug("resume extraction request",
		zap.String("resume_uri", doc.URI),
		zap.String("mime_type", doc.MIMEType),
		zap.Int("document_bytes", len(doc.Data)),
	)

	raw, err := s.generator.GenerateFromDocument(ctx, extractInstruction, doc)
	if err != nil {
		return nil, ai.NewExternalServiceError("ats", "extract", err)
	}

	s.logger.Debug("resume extraction response",
		zap.String("resume_uri", doc.URI),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Preview(raw, s.maxLogLen)),
	)

	return parseProfile(raw)
}

// Rate asks the backend for a 0-100 rating of profile against the job description.
// An answer without digits rates 0; it is not an error.
func (s *ATSScorer) Rate(ctx context.Context, description string, profile *ParsedProfile) (int, string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return 0, "", fmt.Errorf("marshal parsed profile: %w", err)
	}

	raw, err := s.generator.GenerateText(ctx, scoreInstruction, buildScoreInput(description, string(profileJSON)))
	if err != nil {
		return 0, "", ai.NewExternalServiceError("ats", "score", err)
	}

	score, found := ExtractBoundedInteger(raw, 0, 100)
	if !found {
		s.logger.Warn("score answer holds no digits, rating as 0",
			zap.String("response_preview", logger.Preview(raw, s.maxLogLen)),
		)
	}

	return score, raw, nil
}

func buildScoreInput(description, profileJSON string) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nCandidate profile (JSON):\n")
	b.WriteString(profileJSON)
	return b.String()
}

func parseProfile(raw string) (*ParsedProfile, error) {
	data, err := parseObject("resume facts", raw)
	if err != nil {
		return nil, err
	}

	var profile ParsedProfile
	if err := decodeWeak(data, &profile); err != nil {
		return nil, &ai.ParseError{What: "resume facts", Raw: raw, Err: err}
	}

	profile.Skills = nonEmpty(profile.Skills)
	return &profile, nil
}
