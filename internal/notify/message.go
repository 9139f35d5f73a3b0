// Package notify carries job recommendation notifications from the matching worker to the
// email gateway through a queue.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-matcher/internal/model"
)

// KindRecommendation marks a "you may be a fit" message.
const KindRecommendation = "job_recommendation"

// Message is one queued notification.
type Message struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	JobID         string    `json:"jobId"`
	JobTitle      string    `json:"jobTitle"`
	CandidateID   string    `json:"candidateId"`
	CandidateName string    `json:"candidateName"`
	Email         string    `json:"email"`
	Score         int       `json:"score"`
	MatchedSkills []string  `json:"matchedSkills,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewRecommendation builds the message sent to a candidate who crossed the threshold of a job.
func NewRecommendation(job *model.JobPosting, cand *model.CandidateProfile, rec *model.MatchRecord) Message {
	return Message{
		ID:            uuid.NewString(),
		Kind:          KindRecommendation,
		JobID:         job.ID,
		JobTitle:      job.Title,
		CandidateID:   cand.ID,
		CandidateName: cand.FullName(),
		Email:         cand.Email,
		Score:         rec.MatchScore,
		MatchedSkills: rec.Details.MatchedSkills,
		CreatedAt:     time.Now().UTC(),
	}
}
