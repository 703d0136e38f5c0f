package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/clearline/internal/clock"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	"github.com/smallbiznis/clearline/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobRematch = "rematch"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	MatchRepo matchingdomain.Repository
	MatchSvc  matchingdomain.Service
	Config    Config           `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

// Scheduler periodically reruns the item matcher for pairs that still have
// unmatched invoice items.
type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	matchRepo matchingdomain.Repository
	matchSvc  matchingdomain.Service
	metrics   *metrics.Metrics
	cron      *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.MatchRepo == nil || p.MatchSvc == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:       log,
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		matchRepo: p.MatchRepo,
		matchSvc:  p.MatchSvc,
		metrics:   p.Metrics,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log.Sugar()})),
		),
	}, nil
}

// Start registers the sweep and starts the cron runner. Jobs run with ctx
// until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", jobRematch, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.cfg.Spec))
	return nil
}

// Stop halts scheduling and waits for a running job to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobRematch, s.cfg.BatchSize, s.cfg.JobTimeout, s.RematchJob)
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		s.metrics.RecordSchedulerJob(ctx, name, "ok")
		return nil
	}

	// deadline is a soft timeout; the next tick resumes from the remaining backlog
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordSchedulerJob(context.Background(), name, "timeout")
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordSchedulerJob(ctx, name, "error")
	return fmt.Errorf("%s: %w", name, err)
}

// RematchJob reruns the matcher for one batch of pending pairs. A failing
// pair is logged and skipped.
func (s *Scheduler) RematchJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	since := s.clock.Now().Add(-s.cfg.MaxAge)

	pairs, err := s.matchRepo.ListPendingPairs(ctx, since, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.matchSvc.Match(ctx, pair.OrgID, pair.InvoiceID, pair.DeclarationID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			s.logPairError(ctx, run, pair.OrgID, pair.InvoiceID, pair.DeclarationID, err)
			continue
		}
		run.AddProcessed(1)
		if outcome != nil && outcome.Created > 0 {
			s.logger(ctx).Debug("scheduler.rematch.created",
				zap.String("org_id", pair.OrgID.String()),
				zap.String("invoice_id", pair.InvoiceID.String()),
				zap.String("declaration_id", pair.DeclarationID.String()),
				zap.Int("created", outcome.Created),
				zap.Int("unmatched", outcome.Unmatched),
			)
		}
	}
	return nil
}
