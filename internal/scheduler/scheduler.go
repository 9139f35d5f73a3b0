// Package scheduler triggers batch matching runs for every open job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/recommend"
)

// DefaultSpec runs a cycle every six hours.
const DefaultSpec = "@every 6h"

// JobLister returns the ids of jobs that accept candidates.
type JobLister interface {
	ListOpenJobIDs(ctx context.Context) ([]string, error)
}

// Runner runs one batch matching pass for a job.
type Runner interface {
	Run(ctx context.Context, jobID string) (recommend.Summary, error)
}

// CycleReport is the outcome of one scheduling cycle.
type CycleReport struct {
	Jobs      int
	Failed    int
	Summaries []recommend.Summary
}

// Scheduler wraps robfig/cron and runs the matching cycle on every tick. Cycles never
// overlap: a tick that fires while a cycle is running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	jobs   JobLister
	runner Runner
	spec   string
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	initial sync.WaitGroup
}

func New(jobs JobLister, runner Runner, spec string, log *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		cron:   cron.New(),
		jobs:   jobs,
		runner: runner,
		spec:   spec,
		logger: logger.WithFields(log),
	}
}

// Start registers the cycle and starts the cron loop. One cycle also runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.tick(ctx)
	}()

	return nil
}

// Stop stops the cron loop and waits for running cycles to finish, including the one
// started by Start.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous matching cycle still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Error("matching cycle failed", zap.Error(err))
	}
}

// RunCycle runs the worker for every open job, one after another. A failed job is logged and
// the cycle moves on; only listing the jobs or cancellation fails the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	ids, err := s.jobs.ListOpenJobIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list open jobs: %w", err)
	}

	if len(ids) == 0 {
		s.logger.Info("no open jobs, nothing to match")
		return report, nil
	}

	s.logger.Info("matching cycle started", zap.Int("jobs", len(ids)))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Jobs++
		summary, err := s.runner.Run(ctx, id)
		report.Summaries = append(report.Summaries, summary)
		if err != nil {
			report.Failed++
			s.logger.Error("matching run failed", zap.String(logger.FieldJobID, id), zap.Error(err))
		}
	}
	s.logger.Info("matching cycle finished", zap.Int("jobs", report.Jobs), zap.Int("failed", report.Failed))

	return report, nil
}
