package recommend

import (
	"time"

	"github.com/spigell/job-matcher/internal/model"
)

func score(a model.Applicant) int {
	if a.Record == nil {
		return 0
	}
	return a.Record.MatchScore
}

func appliedAt(a model.Applicant) time.Time {
	if a.Record == nil {
		return time.Time{}
	}
	return a.Record.AppliedAt
}

func candidateID(a model.Applicant) string {
	if a.Record != nil {
		return a.Record.CandidateID
	}
	if a.Candidate != nil {
		return a.Candidate.ID
	}
	return ""
}

func experience(a model.Applicant) int {
	if a.Candidate == nil {
		return 0
	}
	return a.Candidate.ExperienceYears
}

func name(a model.Applicant) string {
	if a.Candidate == nil {
		return ""
	}
	return a.Candidate.FullName()
}
