// Package model holds the domain types shared by the matching pipeline.
package model

import (
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a posting.
type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

// MatchStatus is the application state stored on a match record.
type MatchStatus string

const (
	StatusApplied   MatchStatus = "applied"
	StatusReviewing MatchStatus = "reviewing"
	StatusRejected  MatchStatus = "rejected"
	StatusHired     MatchStatus = "hired"
)

// SalaryRange is the advertised compensation band of a posting.
type SalaryRange struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

// JobPosting is a recruiter-owned vacancy.
type JobPosting struct {
	ID             string      `json:"id"`
	RecruiterID    string      `json:"recruiterId,omitempty"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	RequiredSkills []string    `json:"requiredSkills"`
	Location       string      `json:"location"`
	Remote         bool        `json:"remote"`
	Salary         SalaryRange `json:"salary"`
	Status         JobStatus   `json:"status"`
}

// IsOpen reports whether the posting still accepts candidates.
func (j *JobPosting) IsOpen() bool {
	return j != nil && j.Status == JobOpen
}

// CandidateProfile is a job seeker profile as seen by the matching pipeline.
//
// Embedding is a cached vector of the canonical profile text. EmbeddingFingerprint
// identifies the text the vector was computed from; a mismatch means the vector is stale.
type CandidateProfile struct {
	ID                   string    `json:"id"`
	FirstName            string    `json:"firstName"`
	LastName             string    `json:"lastName"`
	Email                string    `json:"email,omitempty"`
	Skills               []string  `json:"skills"`
	ExperienceYears      int       `json:"experienceYears"`
	CurrentPosition      string    `json:"currentPosition"`
	CurrentCompany       string    `json:"currentCompany"`
	CurrentLocation      string    `json:"currentLocation"`
	PreferredLocation    string    `json:"preferredLocation"`
	ResumeURI            string    `json:"resumeUri,omitempty"`
	Embedding            []float32 `json:"-"`
	EmbeddingFingerprint string    `json:"-"`
	JobAlerts            bool      `json:"jobAlerts"`
	Active               bool      `json:"active"`
}

// FullName joins the name parts, skipping empty ones.
func (c *CandidateProfile) FullName() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{c.FirstName, c.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Eligible reports whether the candidate takes part in proactive matching.
func (c *CandidateProfile) Eligible() bool {
	return c != nil && c.Active && c.JobAlerts
}

// MatchDetails is the breakdown persisted alongside a match score.
type MatchDetails struct {
	SkillsMatch     int      `json:"skillsMatch"`
	ExperienceMatch int      `json:"experienceMatch"`
	LocationMatch   int      `json:"locationMatch"`
	SalaryMatch     int      `json:"salaryMatch"`
	MatchedSkills   []string `json:"matchedSkills"`
	MissingSkills   []string `json:"missingSkills"`
	Notes           string   `json:"notes,omitempty"`
}

// MatchRecord is the persisted (job, candidate) scoring artifact. At most one record
// exists per pair.
type MatchRecord struct {
	JobID       string       `json:"jobId"`
	CandidateID string       `json:"candidateId"`
	MatchScore  int          `json:"matchScore"`
	Details     MatchDetails `json:"matchedDetails"`
	Status      MatchStatus  `json:"status"`
	ResumeURI   string       `json:"resumeUri,omitempty"`
	AppliedAt   time.Time    `json:"appliedAt"`
}

// Key returns the composite identity of the record.
func (r *MatchRecord) Key() MatchKey {
	return MatchKey{JobID: r.JobID, CandidateID: r.CandidateID}
}

// MatchKey is the composite identity of a match record.
type MatchKey struct {
	JobID       string
	CandidateID string
}

// Applicant is a match record joined with the candidate it belongs to.
type Applicant struct {
	Record    *MatchRecord      `json:"record"`
	Candidate *CandidateProfile `json:"candidate"`
}
