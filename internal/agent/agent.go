// Package agent runs one hunt: search, filter, assess, price, draft and post.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/issue-hunter/internal/ingest"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/metrics"
	"github.com/david/issue-hunter/internal/models"
	"github.com/david/issue-hunter/internal/outbound"
	"github.com/david/issue-hunter/internal/pacing"
	"github.com/david/issue-hunter/internal/pricing"
	"github.com/david/issue-hunter/internal/respond"
	"github.com/david/issue-hunter/internal/scoring"
)

const (
	DefaultMaxPerRun  = 3
	DefaultRunTimeout = 10 * time.Minute

	reasonDailyLimit = "daily limit reached"
)

// ErrRunInProgress is returned by Run while another run of the same Agent is
// still going.
var ErrRunInProgress = errors.New("agent: run already in progress")

// RunStore persists finished run reports. Optional.
type RunStore interface {
	SaveRun(ctx context.Context, report models.RunReport) error
}

// Options wires an Agent. Poster may be nil only for dry runs. MaxPerRun 0
// means DefaultMaxPerRun and a negative value means no cap.
type Options struct {
	Searcher    ingest.Searcher
	Queries     []string
	Concurrency int
	Filter      ingest.Filter
	Assessor    *scoring.Assessor
	Quoter      pricing.Quoter
	Drafter     *respond.Drafter
	Poster      outbound.Poster
	Gate        *pacing.Gate
	Tracker     *Tracker
	Runs        RunStore
	DryRun      bool
	MaxPerRun   int
	RunTimeout  time.Duration
	Clock       func() time.Time
	Log         logger.Logger
}

// Agent is the orchestrator. A single Agent may be run repeatedly; the gate
// and tracker carry over between runs.
type Agent struct {
	opts    Options
	log     logger.Logger
	running sync.Mutex
}

func New(opts Options) (*Agent, error) {
	switch {
	case opts.Searcher == nil:
		return nil, errors.New("agent: searcher is required")
	case opts.Assessor == nil:
		return nil, errors.New("agent: assessor is required")
	case opts.Drafter == nil:
		return nil, errors.New("agent: drafter is required")
	case opts.Gate == nil:
		return nil, errors.New("agent: rate gate is required")
	case opts.Poster == nil && !opts.DryRun:
		return nil, errors.New("agent: poster is required unless dry run")
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Filter.FreshnessWindow <= 0 {
		opts.Filter = ingest.NewFilter(0, opts.Filter.NegativeKeywords)
	}
	if opts.MaxPerRun == 0 {
		opts.MaxPerRun = DefaultMaxPerRun
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	return &Agent{opts: opts, log: opts.Log}, nil
}

// Tracker exposes the performance tracker shared by all runs.
func (a *Agent) Tracker() *Tracker {
	return a.opts.Tracker
}

// Run performs one hunt. The returned report is always populated unless
// ErrRunInProgress is returned; otherwise the error is non-nil only when the
// run deadline or ctx cut it short.
func (a *Agent) Run(ctx context.Context) (models.RunReport, error) {
	if !a.running.TryLock() {
		return models.RunReport{}, ErrRunInProgress
	}
	defer a.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.opts.RunTimeout)
	defer cancel()

	report := models.RunReport{
		RunID:     uuid.New(),
		StartedAt: a.opts.Clock().UTC(),
		DryRun:    a.opts.DryRun,
	}
	log := a.log.With(logger.String("run_id", report.RunID.String()))
	log.Info("Starting run", logger.Bool("dry_run", a.opts.DryRun), logger.Int("queries", len(a.opts.Queries)))

	runErr := a.run(ctx, &report, log)

	report.FinishedAt = a.opts.Clock().UTC()
	report.Insights = a.opts.Tracker.Insights()
	metrics.RunsCompleted.WithLabelValues(report.Status()).Inc()

	if a.opts.Runs != nil {
		// The run context may already be done; persisting is still wanted.
		saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := a.opts.Runs.SaveRun(saveCtx, report); err != nil {
			log.Error("Failed to save run report", logger.Error(err))
		}
		saveCancel()
	}

	log.Info("Run finished",
		logger.Int("found", report.Found),
		logger.Int("fresh", report.Fresh),
		logger.Int("processed", report.Processed),
		logger.Int("posted", report.Posted),
		logger.Int("drafted", report.Drafted),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Bool("aborted", report.Aborted),
	)
	return report, runErr
}

func (a *Agent) run(ctx context.Context, report *models.RunReport, log logger.Logger) error {
	if !a.opts.DryRun {
		if err := a.opts.Gate.Refresh(ctx); err != nil {
			log.Warn("Could not refresh rate state, using last known counters", logger.Error(err))
		}
	}
	if !a.opts.DryRun && !a.opts.Gate.Open() {
		report.Aborted = true
		report.AbortReason = reasonDailyLimit
		log.Info("Rate gate closed before search, nothing to do")
		return nil
	}

	// 1. Search
	raw, stats, err := ingest.SearchAll(ctx, a.opts.Searcher, a.opts.Queries, a.opts.Concurrency, log)
	report.Found = len(raw)
	if err != nil {
		return a.abort(report, err)
	}
	log.Info("Search complete",
		logger.Int("queries", stats.Queries),
		logger.Int("failed_queries", stats.Failed),
		logger.Int("items", len(raw)),
	)

	// 2. Filter
	fresh, fstats := a.opts.Filter.ApplyWithStats(raw, a.opts.Clock())
	report.Fresh = len(fresh)
	metrics.OpportunitiesDropped.WithLabelValues("duplicate").Add(float64(fstats.Duplicate))
	metrics.OpportunitiesDropped.WithLabelValues("stale").Add(float64(fstats.Stale))
	metrics.OpportunitiesDropped.WithLabelValues("excluded").Add(float64(fstats.Excluded))
	log.Info("Filtered opportunities",
		logger.Int("fresh", len(fresh)),
		logger.Int("duplicate", fstats.Duplicate),
		logger.Int("stale", fstats.Stale),
		logger.Int("excluded", fstats.Excluded),
	)

	if a.opts.MaxPerRun > 0 && len(fresh) > a.opts.MaxPerRun {
		fresh = fresh[:a.opts.MaxPerRun]
	}

	// 3. Per opportunity
	for _, opp := range fresh {
		if err := ctx.Err(); err != nil {
			return a.abort(report, err)
		}

		outcome, stop, err := a.process(ctx, opp, log.With(logger.String("opportunity_id", opp.ID)))
		if err != nil {
			return a.abort(report, err)
		}
		report.Add(outcome)
		a.opts.Tracker.Track(outcome)

		if stop {
			report.Aborted = true
			report.AbortReason = reasonDailyLimit
			log.Info("Rate gate closed, stopping run early")
			break
		}
	}
	return nil
}

// process handles one opportunity. stop is set when the gate skipped the
// post; err only carries context cancellation.
func (a *Agent) process(ctx context.Context, opp models.FilteredOpportunity, log logger.Logger) (models.OpportunityOutcome, bool, error) {
	outcome := models.OpportunityOutcome{
		OpportunityID: opp.ID,
		Title:         opp.Title,
		URL:           opp.URL,
	}

	assessment, err := a.opts.Assessor.Assess(ctx, opp)
	if err != nil {
		return outcome, false, err
	}
	outcome.Assessment = assessment

	if assessment.Declined() {
		outcome.Status = models.OutcomeDeclined
		log.Info("Declining opportunity",
			logger.String("risk_level", string(assessment.RiskLevel)),
			logger.String("reason", assessment.Recommendation.Message),
		)
		return outcome, false, nil
	}

	quote := a.opts.Quoter.Quote(pricing.InputFromAnalysis(assessment.Project))
	outcome.Quote = &quote

	draft, err := a.opts.Drafter.Compose(opp, assessment.Project, quote, respond.SeedFor(opp.ID))
	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		log.Error("Failed to draft reply", logger.Error(err))
		return outcome, false, nil
	}
	outcome.Draft = draft

	if a.opts.DryRun {
		outcome.Status = models.OutcomeDrafted
		log.Info("Dry run, draft surfaced",
			logger.String("risk_level", string(assessment.RiskLevel)),
			logger.Int("quote", quote.TotalAmount),
		)
		return outcome, false, nil
	}

	res, err := pacing.Do(ctx, a.opts.Gate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.opts.Poster.Post(ctx, opp.CommentsURL, draft)
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return outcome, false, ctx.Err()
	case err != nil:
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		log.Warn("Post failed, continuing", logger.Error(err))
		return outcome, false, nil
	case res.Skipped:
		outcome.Status = models.OutcomeSkipped
		return outcome, true, nil
	}

	outcome.Status = models.OutcomePosted
	log.Info("Reply posted",
		logger.String("risk_level", string(assessment.RiskLevel)),
		logger.Int("quote", quote.TotalAmount),
	)
	return outcome, false, nil
}

func (a *Agent) abort(report *models.RunReport, err error) error {
	report.Aborted = true
	report.AbortReason = err.Error()
	return fmt.Errorf("run %s: %w", report.RunID, err)
}
