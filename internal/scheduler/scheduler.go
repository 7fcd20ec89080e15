package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/lock"
	"github.com/smallbiznis/boostd/internal/notification"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	JobActivateScheduled  = "activate_scheduled"
	JobExpireBoosts       = "expire_boosts"
	JobExpiringSoon       = "expiring_soon"
	JobAutoRenew          = "auto_renew"
	JobExpireStalePending = "expire_stale_pending"
	JobRefreshPerformance = "refresh_performance"
	JobSettleRefunds      = "settle_refunds"
	JobReconcileCharges   = "reconcile_charges"
)

const (
	sweepLockKey        = "boostd:scheduler:sweep"
	expiringSoonKeyFmt  = "boostd:expiring_soon:%s"
	singleflightRunOnce = "run_once"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Summary is the outcome of one sweep pass.
type Summary struct {
	ExpiringSoon        int `json:"expiringSoon"`
	Expired             int `json:"expired"`
	AutoRenewed         int `json:"autoRenewed"`
	Failed              int `json:"failed"`
	Activated           int `json:"activated"`
	StalePendingExpired int `json:"stalePendingExpired"`
	OrphanedCharges     int `json:"orphanedCharges"`
	// Errored counts renewals that hit a gateway or storage error and will be retried.
	Errored int `json:"errored"`
	// Unreconciled counts renewals charged but not persisted, left for reconcile_charges.
	Unreconciled int  `json:"unreconciled"`
	Skipped      bool `json:"skipped"`
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      boostdomain.Repository
	Sweep     boostdomain.SweepService
	ChargeLog paymentdomain.ChargeLog
	Notifier  notification.Notifier `optional:"true"`
	Locker    *lock.Locker          `optional:"true"`
	Clock     clock.Clock           `optional:"true"`
	Config    Config                `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	repo      boostdomain.Repository
	sweep     boostdomain.SweepService
	chargeLog paymentdomain.ChargeLog
	notifier  notification.Notifier
	locker    *lock.Locker
	group     singleflight.Group
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Repo == nil || p.Sweep == nil || p.ChargeLog == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.NewNoop()
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     clk,
		repo:      p.Repo,
		sweep:     p.Sweep,
		chargeLog: p.ChargeLog,
		notifier:  notifier,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next pass picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs one full sweep pass. Overlapping calls in this process
// share a single pass; a pass held by another instance yields a skipped summary.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	v, err, shared := s.group.Do(singleflightRunOnce, func() (any, error) {
		return s.runLocked(ctx)
	})
	if shared {
		obsmetrics.Scheduler().IncBatchDeferred(singleflightRunOnce, obsmetrics.SchedulerBatchDeferredReasonInFlight)
	}
	summary, _ := v.(Summary)
	return summary, err
}

func (s *Scheduler) runLocked(ctx context.Context) (Summary, error) {
	if s.locker.Enabled() {
		token, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
		switch {
		case err != nil:
			// row claims and CAS writes still keep concurrent passes safe
			s.log.Warn("sweep lock unavailable, running unlocked", zap.Error(err))
		case !ok:
			obsmetrics.Scheduler().IncBatchDeferred(singleflightRunOnce, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			s.log.Info("sweep already running on another instance")
			return Summary{Skipped: true}, nil
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
					s.log.Warn("release sweep lock failed", zap.Error(err))
				}
			}()
		}
	}
	return s.runJobs(ctx)
}

func (s *Scheduler) runJobs(parent context.Context) (Summary, error) {
	var (
		summary Summary
		err     error
	)

	// activation runs before expiry so a listing moves from predecessor to
	// successor inside one pass.
	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobActivateScheduled, s.isJobEnabled(JobActivateScheduled), func(ctx context.Context) error {
			return s.ActivateScheduledJob(ctx, &summary)
		}},
		{JobExpireBoosts, s.isJobEnabled(JobExpireBoosts), func(ctx context.Context) error {
			return s.ExpireBoostsJob(ctx, &summary)
		}},
		{JobExpiringSoon, s.isJobEnabled(JobExpiringSoon), func(ctx context.Context) error {
			return s.ExpiringSoonJob(ctx, &summary)
		}},
		{JobAutoRenew, s.isJobEnabled(JobAutoRenew), func(ctx context.Context) error {
			return s.AutoRenewJob(ctx, &summary)
		}},
		{JobExpireStalePending, s.cfg.PendingTTL > 0 && s.isJobEnabled(JobExpireStalePending), func(ctx context.Context) error {
			return s.ExpireStalePendingJob(ctx, &summary)
		}},
		{JobRefreshPerformance, s.isJobEnabled(JobRefreshPerformance), s.RefreshPerformanceJob},
		{JobSettleRefunds, s.isJobEnabled(JobSettleRefunds), s.SettleRefundsJob},
		{JobReconcileCharges, s.isJobEnabled(JobReconcileCharges), func(ctx context.Context) error {
			return s.ReconcileChargesJob(ctx, &summary)
		}},
	}

	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return summary, err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		summary, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		s.logSummary(summary)
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) logSummary(summary Summary) {
	s.log.Info("scheduler.run.summary",
		zap.Int("expiring_soon", summary.ExpiringSoon),
		zap.Int("expired", summary.Expired),
		zap.Int("auto_renewed", summary.AutoRenewed),
		zap.Int("failed", summary.Failed),
		zap.Int("activated", summary.Activated),
		zap.Int("stale_pending_expired", summary.StalePendingExpired),
		zap.Int("orphaned_charges", summary.OrphanedCharges),
		zap.Int("errored", summary.Errored),
		zap.Int("unreconciled", summary.Unreconciled),
		zap.Bool("skipped", summary.Skipped),
	)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
