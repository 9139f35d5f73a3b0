package recommend

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/model"
)

const (
	DefaultRankLimit = 20
	MaxRankLimit     = 100
)

// SortField is an applicant attribute the ranker orders by.
type SortField string

const (
	SortScore      SortField = "score"
	SortAppliedAt  SortField = "applied_at"
	SortExperience SortField = "experience"
	SortName       SortField = "name"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortScore, nil
	case SortScore, SortAppliedAt, SortExperience, SortName:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// RankQuery selects one page of a job's applicants. Page is 1-based.
type RankQuery struct {
	JobID string
	Page  int
	Limit int
	Sort  SortField
	Order SortOrder
}

// RankPage is one page of ranked applicants.
type RankPage struct {
	JobID      string
	Items      []model.Applicant
	Total      int
	Page       int
	Limit      int
	Pages      int
	Backfilled int
	// BackfillFailed applicants keep their previous score.
	BackfillFailed int
}

// RankerStore is the storage the ranker needs.
type RankerStore interface {
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)
	ListApplicants(ctx context.Context, jobID string) ([]model.Applicant, error)
	UpdateMatchScore(ctx context.Context, jobID, candidateID string, score int, details model.MatchDetails) error
}

// RankerOptions tunes a Ranker. Zero values select the defaults.
type RankerOptions struct {
	DefaultLimit int
	MaxLimit     int
	Concurrency  int
}

// Ranker serves a sorted, paginated view of a job's applicants, scoring unscored ones first.
type Ranker struct {
	store  RankerStore
	scorer Scorer
	logger *zap.Logger

	defaultLimit int
	maxLimit     int
	concurrency  int
}

func NewRanker(st RankerStore, scorer Scorer, opts RankerOptions, log *zap.Logger) *Ranker {
	r := &Ranker{
		store:        st,
		scorer:       scorer,
		logger:       logger.WithFields(log),
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		concurrency:  opts.Concurrency,
	}
	if r.defaultLimit <= 0 {
		r.defaultLimit = DefaultRankLimit
	}
	if r.maxLimit <= 0 {
		r.maxLimit = MaxRankLimit
	}
	if r.defaultLimit > r.maxLimit {
		r.defaultLimit = r.maxLimit
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	return r
}

// Rank loads the applicants of the job, backfills missing scores and returns the requested
// page. Backfill failures degrade the page instead of failing it.
func (r *Ranker) Rank(ctx context.Context, q RankQuery) (*RankPage, error) {
	job, err := r.store.GetJob(ctx, q.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", q.JobID, err)
	}

	applicants, err := r.store.ListApplicants(ctx, q.JobID)
	if err != nil {
		return nil, fmt.Errorf("list applicants of %s: %w", q.JobID, err)
	}

	backfilled, failed := r.backfill(ctx, job, applicants)

	sortApplicants(applicants, q.Sort, q.Order)

	page, limit := r.normalizePaging(q.Page, q.Limit)
	total := len(applicants)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	items := make([]model.Applicant, end-start)
	copy(items, applicants[start:end])

	return &RankPage{
		JobID:          q.JobID,
		Items:          items,
		Total:          total,
		Page:           page,
		Limit:          limit,
		Pages:          (total + limit - 1) / limit,
		Backfilled:     backfilled,
		BackfillFailed: failed,
	}, nil
}

// backfill scores applicants without a score, preferring the resume submitted with the
// application. Persisting a new score is best-effort.
func (r *Ranker) backfill(ctx context.Context, job *model.JobPosting, applicants []model.Applicant) (int, int) {
	var backfilled, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range applicants {
		a := applicants[i]
		if a.Record == nil || a.Candidate == nil || a.Record.MatchScore > 0 {
			continue
		}

		g.Go(func() error {
			log := logger.ForMatch(r.logger, job.ID, a.Candidate.ID)

			resumeURI := a.Record.ResumeURI
			if resumeURI == "" {
				resumeURI = a.Candidate.ResumeURI
			}

			res := r.scorer.ScoreWithResume(ctx, job, a.Candidate, resumeURI)
			if res.Strategy == matching.StrategyNone {
				failed.Add(1)
				log.Warn("backfill scoring failed, keeping previous score", zap.Error(res.Err))
				return nil
			}

			a.Record.MatchScore = res.Score
			a.Record.Details = res.Details()
			backfilled.Add(1)

			if err := r.store.UpdateMatchScore(ctx, job.ID, a.Candidate.ID, res.Score, a.Record.Details); err != nil {
				log.Warn("could not persist backfilled score", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(backfilled.Load()), int(failed.Load())
}

func (r *Ranker) normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > r.maxLimit {
		limit = r.maxLimit
	}
	return page, limit
}

// sortApplicants orders by field in the given order. Ties go to the earliest application,
// then to the candidate id.
func sortApplicants(applicants []model.Applicant, field SortField, order SortOrder) {
	if field == "" {
		field = SortScore
	}
	if order == "" {
		order = Desc
	}

	sort.SliceStable(applicants, func(i, j int) bool {
		a, b := applicants[i], applicants[j]
		if c := compareBy(field, a, b); c != 0 {
			if order == Desc {
				return c > 0
			}
			return c < 0
		}
		if ta, tb := appliedAt(a), appliedAt(b); !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return candidateID(a) < candidateID(b)
	})
}

func compareBy(field SortField, a, b model.Applicant) int {
	switch field {
	case SortAppliedAt:
		return appliedAt(a).Compare(appliedAt(b))
	case SortExperience:
		return cmp.Compare(experience(a), experience(b))
	case SortName:
		return strings.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	default:
		return cmp.Compare(score(a), score(b))
	}
}
