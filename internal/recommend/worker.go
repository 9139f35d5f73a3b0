package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/model"
	"github.com/spigell/job-matcher/internal/notify"
	"github.com/spigell/job-matcher/internal/store"
)

const (
	// DefaultNotificationThreshold is the lowest score that is recorded and notified.
	DefaultNotificationThreshold = 50
	DefaultConcurrency           = 4
)

// Scorer scores a candidate against a job and never fails.
type Scorer interface {
	Score(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) matching.Result
	ScoreWithResume(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile, resumeURI string) matching.Result
}

// EmbeddingEnsurer computes and persists a candidate embedding when it is missing or stale.
type EmbeddingEnsurer interface {
	Ensure(ctx context.Context, cand *model.CandidateProfile) (bool, error)
}

// WorkerStore is the storage the batch worker needs.
type WorkerStore interface {
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)
	ListEligibleCandidates(ctx context.Context, afterID string, limit int) ([]*model.CandidateProfile, error)
	UpsertMatch(ctx context.Context, rec *model.MatchRecord) (bool, error)
}

// WorkerOptions tunes a Worker. Zero values select the defaults, so a threshold of 0 means 50.
type WorkerOptions struct {
	Threshold   int
	PageSize    int
	Concurrency int
	// NotifyCreatedOnly skips notifications for records that already existed. By default every
	// upsert at or above the threshold queues one, so a failed enqueue is retried by the next run.
	NotifyCreatedOnly bool
}

// Worker scores every eligible candidate against one job. A run is a single best-effort sweep:
// one candidate's failure never stops the others, and reruns converge on the same records.
type Worker struct {
	store      WorkerStore
	scorer     Scorer
	embeddings EmbeddingEnsurer
	outbox     notify.Outbox
	logger     *zap.Logger

	threshold         int
	pageSize          int
	concurrency       int
	notifyCreatedOnly bool
}

// NewWorker creates a Worker. embeddings and outbox may be nil.
func NewWorker(st WorkerStore, scorer Scorer, embeddings EmbeddingEnsurer, outbox notify.Outbox, opts WorkerOptions, log *zap.Logger) *Worker {
	w := &Worker{
		store:             st,
		scorer:            scorer,
		embeddings:        embeddings,
		outbox:            outbox,
		logger:            logger.WithFields(log),
		threshold:         opts.Threshold,
		pageSize:          opts.PageSize,
		concurrency:       opts.Concurrency,
		notifyCreatedOnly: opts.NotifyCreatedOnly,
	}
	if w.threshold <= 0 {
		w.threshold = DefaultNotificationThreshold
	}
	if w.pageSize <= 0 {
		w.pageSize = store.DefaultPageSize
	}
	if w.concurrency <= 0 {
		w.concurrency = DefaultConcurrency
	}
	return w
}

// Run processes one job. A missing or closed job ends the run without error. The returned
// error is a storage failure while paging or the context error after cancellation; records
// upserted before it are kept.
func (w *Worker) Run(ctx context.Context, jobID string) (Summary, error) {
	summary := Summary{JobID: jobID}
	log := w.logger.With(zap.String(logger.FieldJobID, jobID))

	log.Debug("loading job", zap.String(logger.FieldStage, "loading_job"))
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("job not found, nothing to match")
			return summary, nil
		}
		return summary, fmt.Errorf("load job %s: %w", jobID, err)
	}
	summary.JobFound = true

	if !job.IsOpen() {
		log.Info("job is not open, skipping", zap.String("status", string(job.Status)))
		return summary, nil
	}

	after := ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			return summary, err
		}

		candidates, err := w.store.ListEligibleCandidates(ctx, after, w.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				summary.Cancelled = true
				return summary, ctx.Err()
			}
			return summary, fmt.Errorf("list candidates after %q: %w", after, err)
		}
		if len(candidates) == 0 {
			break
		}

		log.Debug("processing candidate page",
			zap.String(logger.FieldStage, "paging_candidates"),
			zap.Int("page", page),
			zap.Int("candidates", len(candidates)),
		)

		for _, outcome := range w.processPage(ctx, job, candidates) {
			summary.add(outcome)
		}

		after = candidates[len(candidates)-1].ID
		if len(candidates) < w.pageSize {
			break
		}
	}

	if ctx.Err() != nil {
		summary.Cancelled = true
		return summary, ctx.Err()
	}

	log.Info("matching run finished",
		zap.Int("candidates", summary.Candidates),
		zap.Int("scored", summary.Scored),
		zap.Int("recorded", summary.Recorded),
		zap.Int("notified", summary.Notified),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}

// processPage scores a page with bounded concurrency. Outcomes keep page order.
func (w *Worker) processPage(ctx context.Context, job *model.JobPosting, candidates []*model.CandidateProfile) []Outcome {
	outcomes := make([]Outcome, len(candidates))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = Outcome{CandidateID: cand.ID, Skipped: true}
				return nil
			}
			outcomes[i] = w.processCandidate(ctx, job, cand)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (w *Worker) processCandidate(ctx context.Context, job *model.JobPosting, cand *model.CandidateProfile) (out Outcome) {
	out = Outcome{CandidateID: cand.ID}
	log := logger.ForMatch(w.logger, job.ID, cand.ID)
	stage := StageEnsureEmbedding

	defer func() {
		if r := recover(); r != nil {
			out.Stage = stage
			out.Err = fmt.Errorf("panic: %v", r)
			log.Error("candidate processing panicked", zap.String(logger.FieldStage, string(stage)), zap.Any("panic", r))
		}
	}()

	if w.embeddings != nil && !matching.Fresh(cand) {
		if _, err := w.embeddings.Ensure(ctx, cand); err != nil {
			log.Warn("could not ensure candidate embedding", zap.String(logger.FieldStage, string(stage)), zap.Error(err))
		}
	}

	stage = StageScore
	res := w.scorer.Score(ctx, job, cand)
	out.Score = res.Score
	out.Strategy = res.Strategy
	if res.Strategy == matching.StrategyNone {
		out.Stage = stage
		out.Err = res.Err
		if out.Err == nil {
			out.Err = errors.New(res.Notes)
		}
		log.Warn("candidate could not be scored", zap.String(logger.FieldStage, string(stage)), zap.Error(out.Err))
		return out
	}

	if res.Score < w.threshold {
		return out
	}

	stage = StageUpsert
	rec := &model.MatchRecord{
		JobID:       job.ID,
		CandidateID: cand.ID,
		MatchScore:  res.Score,
		Details:     res.Details(),
		Status:      model.StatusApplied,
		ResumeURI:   cand.ResumeURI,
	}
	created, err := w.store.UpsertMatch(ctx, rec)
	if err != nil {
		out.Stage = stage
		out.Err = err
		log.Error("could not record match", zap.String(logger.FieldStage, string(stage)), zap.Int("score", res.Score), zap.Error(err))
		return out
	}
	out.Recorded = true
	out.Created = created
	log.Info("match recorded", zap.Int("score", res.Score), zap.String(logger.FieldStrategy, string(res.Strategy)), zap.Bool("created", created))

	if w.outbox == nil || (!created && w.notifyCreatedOnly) {
		return out
	}

	stage = StageNotify
	if err := w.outbox.Enqueue(ctx, notify.NewRecommendation(job, cand, rec)); err != nil {
		out.NotifyErr = err
		log.Warn("could not queue recommendation", zap.String(logger.FieldStage, string(stage)), zap.Error(err))
		return out
	}
	out.Notified = true

	return out
}
