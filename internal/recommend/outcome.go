// Package recommend runs the matching pipeline: the batch worker that scores one job against
// the eligible candidate population, and the ranker that orders a job's applicants.
package recommend

import "github.com/spigell/job-matcher/internal/matching"

// Stage names the step of a per-candidate run.
type Stage string

const (
	StageEnsureEmbedding Stage = "ensure_embedding"
	StageScore           Stage = "score"
	StageUpsert          Stage = "upsert"
	StageNotify          Stage = "notify"
)

// Outcome is the result of processing one candidate.
type Outcome struct {
	CandidateID string
	Score       int
	Strategy    matching.Strategy
	// Recorded is true once the match record was upserted; Created when it did not exist.
	Recorded bool
	Created  bool
	Notified bool
	// Skipped is set when the run was cancelled before the candidate was processed.
	Skipped bool
	// Err is the failure that ended processing at Stage.
	Stage Stage
	Err   error
	// NotifyErr is a notification failure. It never affects the persisted record.
	NotifyErr error
}

// Failed reports whether processing the candidate ended in an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Summary aggregates the outcomes of one worker run.
type Summary struct {
	JobID      string
	JobFound   bool
	Candidates int
	Scored     int
	Recorded   int
	Created    int
	Notified   int
	Failed     int
	// NotifyFailed counts recorded matches whose notification could not be queued.
	NotifyFailed int
	Skipped      int
	Cancelled    bool
	Failures     []Outcome
}

func (s *Summary) add(o Outcome) {
	if o.Skipped {
		s.Skipped++
		return
	}

	s.Candidates++
	if o.Strategy != "" && o.Strategy != matching.StrategyNone {
		s.Scored++
	}
	if o.Recorded {
		s.Recorded++
	}
	if o.Created {
		s.Created++
	}
	if o.Notified {
		s.Notified++
	}
	if o.NotifyErr != nil {
		s.NotifyFailed++
	}
	if o.Failed() {
		s.Failed++
		s.Failures = append(s.Failures, o)
	}
}
