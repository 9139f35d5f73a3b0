package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/model"
)

func TestWorkerThresholdBoundary(t *testing.T) {
	mem := seededMemory(2)
	scorer := newStubScorer(map[string]int{candidate(1): 50, candidate(2): 49})
	outbox := &recordingOutbox{}

	summary, err := NewWorker(mem, scorer, nil, outbox, WorkerOptions{}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Scored)
	assert.Equal(t, 1, summary.Recorded)
	assert.Equal(t, 1, summary.Notified)

	rec, err := mem.GetMatch(context.Background(), "job-1", candidate(1))
	require.NoError(t, err)
	assert.Equal(t, 50, rec.MatchScore)
	assert.Equal(t, model.StatusApplied, rec.Status)
	assert.Equal(t, []string{"go"}, rec.Details.MatchedSkills)

	_, err = mem.GetMatch(context.Background(), "job-1", candidate(2))
	assert.Error(t, err)
	assert.Equal(t, []string{candidate(1)}, outbox.candidates())
}

func TestWorkerThresholdIsOverridable(t *testing.T) {
	mem := seededMemory(2)
	scorer := newStubScorer(map[string]int{candidate(1): 50, candidate(2): 49})

	summary, err := NewWorker(mem, scorer, nil, nil, WorkerOptions{Threshold: 40}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Recorded)
	assert.Zero(t, summary.Notified)
}

func TestWorkerZeroThresholdSelectsDefault(t *testing.T) {
	mem := seededMemory(1)
	scorer := newStubScorer(map[string]int{candidate(1): 10})

	summary, err := NewWorker(mem, scorer, nil, nil, WorkerOptions{Threshold: 0}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Zero(t, summary.Recorded)
}

func TestWorkerRunIsIdempotent(t *testing.T) {
	mem := seededMemory(4)
	scorer := newStubScorer(map[string]int{candidate(1): 90, candidate(2): 10, candidate(3): 70, candidate(4): 55})
	outbox := &recordingOutbox{}
	worker := NewWorker(mem, scorer, nil, outbox, WorkerOptions{Concurrency: 2}, zap.NewNop())
	ctx := context.Background()

	first, err := worker.Run(ctx, "job-1")
	require.NoError(t, err)
	second, err := worker.Run(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, 3, mem.MatchCount())
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 3, second.Recorded)
	assert.Zero(t, second.Created)
	assert.Len(t, outbox.candidates(), 6, "every qualifying upsert queues a notification")

	for id, want := range map[string]int{candidate(1): 90, candidate(3): 70, candidate(4): 55} {
		rec, err := mem.GetMatch(ctx, "job-1", id)
		require.NoError(t, err)
		assert.Equal(t, want, rec.MatchScore)
	}
}

func TestWorkerNotifyCreatedOnlySkipsExistingRecords(t *testing.T) {
	mem := seededMemory(2)
	scorer := newStubScorer(map[string]int{candidate(1): 90, candidate(2): 60})
	outbox := &recordingOutbox{}
	worker := NewWorker(mem, scorer, nil, outbox, WorkerOptions{NotifyCreatedOnly: true}, zap.NewNop())
	ctx := context.Background()

	_, err := worker.Run(ctx, "job-1")
	require.NoError(t, err)
	second, err := worker.Run(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, 2, second.Recorded)
	assert.Zero(t, second.Notified)
	assert.Len(t, outbox.candidates(), 2)
}

func TestWorkerRerunDeliversFailedNotification(t *testing.T) {
	mem := seededMemory(1)
	scorer := newStubScorer(map[string]int{candidate(1): 80})
	ctx := context.Background()

	broken := &recordingOutbox{err: errors.New("redis unavailable")}
	first, err := NewWorker(mem, scorer, nil, broken, WorkerOptions{}, zap.NewNop()).Run(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Recorded)
	assert.Equal(t, 1, first.NotifyFailed)

	outbox := &recordingOutbox{}
	second, err := NewWorker(mem, scorer, nil, outbox, WorkerOptions{}, zap.NewNop()).Run(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Recorded)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Notified)
	assert.Equal(t, []string{candidate(1)}, outbox.candidates())
}

func TestWorkerIsolatesCandidateFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mem := seededMemory(10)
	scores := map[string]int{}
	for i := 1; i <= 10; i++ {
		scores[candidate(i)] = 80
	}
	scorer := newStubScorer(scores)
	scorer.panics[candidate(7)] = true

	summary, err := NewWorker(mem, scorer, nil, &recordingOutbox{}, WorkerOptions{PageSize: 3, Concurrency: 1}, zap.New(core)).Run(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Candidates)
	assert.Equal(t, 9, summary.Recorded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, candidate(7), summary.Failures[0].CandidateID)
	assert.Equal(t, StageScore, summary.Failures[0].Stage)

	for _, i := range []int{8, 9, 10} {
		_, err := mem.GetMatch(context.Background(), "job-1", candidate(i))
		assert.NoError(t, err, "candidate %d must be recorded", i)
	}

	entries := logs.FilterMessage("candidate processing panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, candidate(7), entries[0].ContextMap()["candidate_id"])
	assert.Equal(t, "job-1", entries[0].ContextMap()["job_id"])
}

func TestWorkerCountsUnscorableAndUpsertFailures(t *testing.T) {
	mem := &pagingStore{Memory: seededMemory(3), failUpsert: map[string]bool{candidate(2): true}}
	scorer := newStubScorer(map[string]int{candidate(1): 60, candidate(2): 60, candidate(3): 60})
	scorer.failing[candidate(3)] = true

	summary, err := NewWorker(mem, scorer, nil, nil, WorkerOptions{}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Recorded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.Scored)

	stages := map[string]Stage{}
	for _, f := range summary.Failures {
		stages[f.CandidateID] = f.Stage
	}
	assert.Equal(t, map[string]Stage{candidate(2): StageUpsert, candidate(3): StageScore}, stages)
}

func TestWorkerNotificationFailureKeepsRecord(t *testing.T) {
	mem := seededMemory(1)
	scorer := newStubScorer(map[string]int{candidate(1): 75})
	outbox := &recordingOutbox{err: errors.New("redis unavailable")}

	summary, err := NewWorker(mem, scorer, nil, outbox, WorkerOptions{}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Recorded)
	assert.Equal(t, 1, summary.NotifyFailed)
	assert.Zero(t, summary.Failed)

	rec, err := mem.GetMatch(context.Background(), "job-1", candidate(1))
	require.NoError(t, err)
	assert.Equal(t, 75, rec.MatchScore)
}

func TestWorkerPagesThroughCandidates(t *testing.T) {
	mem := &pagingStore{Memory: seededMemory(10)}
	scorer := newStubScorer(map[string]int{})

	summary, err := NewWorker(mem, scorer, nil, nil, WorkerOptions{PageSize: 3}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Candidates)
	assert.Equal(t, 4, mem.pages)
	assert.Equal(t, 10, scorer.callCount())
}

func TestWorkerEnsuresMissingEmbeddings(t *testing.T) {
	mem := seededMemory(3)
	require.NoError(t, mem.SaveCandidateEmbedding(context.Background(), candidate(2), []float32{0.1}, ""))
	ensurer := &countingEnsurer{store: mem}

	_, err := NewWorker(mem, newStubScorer(nil), ensurer, nil, WorkerOptions{Concurrency: 1}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{candidate(1), candidate(3)}, ensurer.seen)
}

func TestWorkerEmbeddingFailureDoesNotAbortScoring(t *testing.T) {
	mem := seededMemory(1)
	scorer := newStubScorer(map[string]int{candidate(1): 65})

	summary, err := NewWorker(mem, scorer, &countingEnsurer{err: errors.New("quota")}, nil, WorkerOptions{}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Recorded)
	assert.Zero(t, summary.Failed)
}

func TestWorkerMissingJob(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	scorer := newStubScorer(nil)

	summary, err := NewWorker(seededMemory(2), scorer, nil, nil, WorkerOptions{}, zap.New(core)).Run(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, summary.JobFound)
	assert.Zero(t, scorer.callCount())
	assert.Equal(t, 1, logs.FilterMessage("job not found, nothing to match").Len())
}

func TestWorkerSkipsClosedJob(t *testing.T) {
	mem := seededMemory(2)
	mem.PutJob(&model.JobPosting{ID: "job-1", Status: model.JobClosed})
	scorer := newStubScorer(nil)

	summary, err := NewWorker(mem, scorer, nil, nil, WorkerOptions{}, zap.NewNop()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, summary.JobFound)
	assert.Zero(t, scorer.callCount())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	mem := seededMemory(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewWorker(mem, newStubScorer(nil), nil, nil, WorkerOptions{}, zap.NewNop()).Run(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Cancelled)
	assert.Zero(t, mem.MatchCount())
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	s.add(Outcome{Skipped: true})
	s.add(Outcome{Strategy: matching.StrategyATS, Recorded: true, Created: true, Notified: true})
	s.add(Outcome{Strategy: matching.StrategyNone, Stage: StageScore, Err: errors.New("x")})

	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Candidates)
	assert.Equal(t, 1, s.Scored)
	assert.Equal(t, 1, s.Notified)
	assert.Equal(t, 1, s.Failed)
}
