// Package scheduler runs the agent on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/david/issue-hunter/internal/agent"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
)

// Runner starts one hunt.
type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
}

// Scheduler triggers Runner on a standard 5-field cron spec
// (minute hour day month weekday). Descriptors like "@hourly" also work.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	log     logger.Logger
	spec    string
	entryID cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates spec and registers the job. Nothing runs until Start.
func New(spec string, runner Runner, log logger.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	log = log.With(logger.String("schedule", spec))
	clog := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog)),
		),
		runner: runner,
		log:    log,
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling run: %w", err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", logger.Time("next_run", s.Next()))
}

// Stop cancels an in-progress run and waits for it to return.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// Next is the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) tick() {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}

	report, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, agent.ErrRunInProgress):
		s.log.Info("Previous run still in progress, skipping tick")
	case err != nil:
		s.log.Error("Scheduled run failed", logger.Error(err), logger.String("run_id", report.RunID.String()))
	default:
		s.log.Info("Scheduled run finished",
			logger.String("run_id", report.RunID.String()),
			logger.String("status", report.Status()),
			logger.Int("posted", report.Posted),
		)
	}
}
