// Package matching scores how well a candidate profile fits a job posting.
//
// Two strategies exist: resume-grounded scoring, where a generative model reads the resume
// document and the job description, and embedding similarity between the canonical job and
// profile texts. Scorer orders them and never fails.
package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/spigell/job-matcher/internal/model"
)

// BuildJobText renders the canonical embedding text of a posting: title, description,
// comma-joined skills and location, one per line. Missing values render as empty lines.
func BuildJobText(job *model.JobPosting) string {
	if job == nil {
		return ""
	}

	return joinLines(
		job.Title,
		job.Description,
		strings.Join(nonEmpty(job.RequiredSkills), ", "),
		job.Location,
	)
}

// BuildProfileText renders the canonical embedding text of a candidate: full name, current
// position, comma-joined skills, experience years, current and preferred location.
func BuildProfileText(c *model.CandidateProfile) string {
	if c == nil {
		return ""
	}

	experience := ""
	if c.ExperienceYears > 0 {
		experience = strconv.Itoa(c.ExperienceYears) + " years of experience"
	}

	return joinLines(
		c.FullName(),
		c.CurrentPosition,
		strings.Join(nonEmpty(c.Skills), ", "),
		experience,
		c.CurrentLocation,
		c.PreferredLocation,
	)
}

// Fingerprint identifies a canonical text. A cached embedding is fresh only while the
// fingerprint of the current text equals the one it was computed from.
func Fingerprint(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func joinLines(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
