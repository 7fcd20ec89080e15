package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/notification"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	resourcePerformance = "boosts_for_performance"
	resourceRefunds     = "boosts_for_refund"
	resourceCharges     = "payment_charges"
)

type claimFunc func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error)

type handleFunc func(ctx context.Context, id snowflake.ID) (bool, error)

// drain claims batches and handles each record until a batch is empty, short,
// or makes no progress. Per-record failures are logged and joined.
func (s *Scheduler) drain(ctx context.Context, job, resource string, claim claimFunc, handle handleFunc) (int, error) {
	ctx, run, _ := s.ensureJobRun(ctx, job, s.cfg.BatchSize)
	schedMetrics := obsmetrics.Scheduler()
	var (
		total  int
		jobErr error
	)

	for {
		if err := ctx.Err(); err != nil {
			return total, errors.Join(jobErr, err)
		}

		claimStart := time.Now()
		ids, err := claim(ctx, s.clock.Now().UTC(), s.cfg.BatchSize)
		schedMetrics.ObserveDBLockWait(resource, time.Since(claimStart))
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.claim.failed", job, 0, err)
			return total, errors.Join(jobErr, err)
		}
		if len(ids) == 0 {
			break
		}

		progressed := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total + progressed, errors.Join(jobErr, err)
			}
			ok, err := handle(ctx, id)
			if err != nil {
				jobErr = errors.Join(jobErr, fmt.Errorf("boost %s: %w", id, err))
				s.logSchedulerError(ctx, run, "scheduler.boost.process.failed", job, id, err)
				continue
			}
			if ok {
				progressed++
			}
		}

		run.AddProcessed(progressed)
		schedMetrics.AddBatchProcessed(job, resource, progressed)
		total += progressed
		if progressed == 0 || len(ids) < s.cfg.BatchSize {
			break
		}
	}
	return total, jobErr
}

// ActivateScheduledJob starts renewal successors whose window has opened.
func (s *Scheduler) ActivateScheduledJob(ctx context.Context, summary *Summary) error {
	count, err := s.drain(ctx, JobActivateScheduled, obsmetrics.LockResourceBoostsForActivate,
		func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListScheduledDueIDs(ctx, s.db, now, limit)
		},
		s.sweep.ActivateScheduledBoost,
	)
	summary.Activated += count
	obsmetrics.Scheduler().IncBoostTransition(string(boostdomain.BoostStatusScheduled), string(boostdomain.BoostStatusActive), count)
	return err
}

// ExpireBoostsJob closes active records whose end date has passed.
func (s *Scheduler) ExpireBoostsJob(ctx context.Context, summary *Summary) error {
	count, err := s.drain(ctx, JobExpireBoosts, obsmetrics.LockResourceBoostsForExpiry,
		func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListExpiredIDs(ctx, s.db, now, limit)
		},
		s.sweep.ExpireBoost,
	)
	summary.Expired += count
	obsmetrics.Scheduler().IncBoostTransition(string(boostdomain.BoostStatusActive), string(boostdomain.BoostStatusExpired), count)
	return err
}

func (s *Scheduler) ExpireStalePendingJob(ctx context.Context, summary *Summary) error {
	if s.cfg.PendingTTL <= 0 {
		return nil
	}
	count, err := s.drain(ctx, JobExpireStalePending, obsmetrics.LockResourceStalePendingBoosts,
		func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListStalePendingIDs(ctx, s.db, now.Add(-s.cfg.PendingTTL), limit)
		},
		s.sweep.ExpireStalePendingBoost,
	)
	summary.StalePendingExpired += count
	obsmetrics.Scheduler().IncBoostTransition(string(boostdomain.BoostStatusPending), string(boostdomain.BoostStatusExpired), count)
	return err
}

// AutoRenewJob charges for the next period of records nearing their end date.
// A declined charge disables auto-renew on the record and counts as failed; any
// other error counts as errored and the record is retried on the next pass.
func (s *Scheduler) AutoRenewJob(ctx context.Context, summary *Summary) error {
	_, err := s.drain(ctx, JobAutoRenew, obsmetrics.LockResourceBoostsForRenewal,
		func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListRenewableIDs(ctx, s.db, now.Add(s.cfg.RenewalWindow), limit)
		},
		func(ctx context.Context, id snowflake.ID) (bool, error) {
			result, err := s.sweep.RenewBoost(ctx, id)
			if err != nil {
				summary.Errored++
				if errors.Is(err, boostdomain.ErrRenewalNotPersisted) {
					summary.Unreconciled++
				}
				return false, err
			}
			switch result.Outcome {
			case boostdomain.RenewalOutcomeRenewed:
				summary.AutoRenewed++
				return true, nil
			case boostdomain.RenewalOutcomeFailed:
				summary.Failed++
				s.logger(ctx).Info("scheduler.renewal.failed",
					zap.String("boost_id", idString(id)),
					zap.Error(result.Reason),
				)
				return true, nil
			default:
				return false, nil
			}
		},
	)
	return err
}

func (s *Scheduler) RefreshPerformanceJob(ctx context.Context) error {
	_, err := s.drain(ctx, JobRefreshPerformance, resourcePerformance,
		func(ctx context.Context, now time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListPerformanceDueIDs(ctx, s.db, now, now.Add(-s.cfg.PerformanceRefreshInterval), limit)
		},
		s.sweep.RefreshPerformance,
	)
	return err
}

// SettleRefundsJob retries refunds recorded at cancellation but not yet paid out.
func (s *Scheduler) SettleRefundsJob(ctx context.Context) error {
	_, err := s.drain(ctx, JobSettleRefunds, resourceRefunds,
		func(ctx context.Context, _ time.Time, limit int) ([]snowflake.ID, error) {
			return s.repo.ListPendingRefundIDs(ctx, s.db, limit)
		},
		s.sweep.SettleRefund,
	)
	return err
}

// ExpiringSoonJob reports active records ending within the warning window
// that will not renew. Records are never mutated here.
func (s *Scheduler) ExpiringSoonJob(ctx context.Context, summary *Summary) error {
	ctx, run, _ := s.ensureJobRun(ctx, JobExpiringSoon, s.cfg.BatchSize)
	now := s.clock.Now().UTC()
	until := now.Add(s.cfg.WarningWindow)
	var after snowflake.ID

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := s.repo.ListExpiringSoon(ctx, s.db, now, until, after, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.claim.failed", JobExpiringSoon, 0, err)
			return err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			after = item.ID
			summary.ExpiringSoon++
			if !s.firstWarning(ctx, item.ID) {
				continue
			}
			s.notify(ctx, item.SellerID, notification.KindBoostExpiringSoon, map[string]any{
				"boost_id":   item.ID.String(),
				"listing_id": item.ListingID.String(),
				"tier":       string(item.Tier),
				"end_date":   item.EndDate,
			})
		}
		run.AddProcessed(len(items))
		if len(items) < s.cfg.BatchSize {
			break
		}
	}
	return nil
}

// firstWarning dedupes expiring-soon notices per record for one warning window.
// Without redis every pass warns again.
func (s *Scheduler) firstWarning(ctx context.Context, id snowflake.ID) bool {
	if !s.locker.Enabled() {
		return true
	}
	first, err := s.locker.MarkOnce(ctx, fmt.Sprintf(expiringSoonKeyFmt, id), s.cfg.WarningWindow)
	if err != nil {
		s.logger(ctx).Warn("expiring soon dedupe failed", zap.String("boost_id", idString(id)), zap.Error(err))
		return true
	}
	return first
}

// ReconcileChargesJob marks succeeded charges that a boost record carries as
// reconciled and reports the rest as orphans.
func (s *Scheduler) ReconcileChargesJob(ctx context.Context, summary *Summary) error {
	ctx, run, _ := s.ensureJobRun(ctx, JobReconcileCharges, s.cfg.BatchSize)
	now := s.clock.Now().UTC()
	cutoff := now.Add(-s.cfg.ReconcileGrace)
	purposes := []paymentdomain.Purpose{paymentdomain.PurposePurchase, paymentdomain.PurposeRenewal}
	var (
		after  snowflake.ID
		jobErr error
	)

	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		charges, err := s.chargeLog.ListUnreconciled(ctx, purposes, cutoff, after, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.claim.failed", JobReconcileCharges, 0, err)
			return errors.Join(jobErr, err)
		}
		if len(charges) == 0 {
			break
		}

		linkedCount := 0
		for _, charge := range charges {
			after = charge.ID
			if charge.TransactionRef == nil || *charge.TransactionRef == "" {
				continue
			}
			ref := *charge.TransactionRef
			linked, err := s.repo.TransactionRefExists(ctx, s.db, ref)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.charge.reconcile.failed", JobReconcileCharges, charge.BoostID, err)
				continue
			}
			if !linked {
				summary.OrphanedCharges++
				s.logger(ctx).Warn("scheduler.charge.orphaned",
					zap.String("charge_id", idString(charge.ID)),
					zap.String("boost_id", idString(charge.BoostID)),
					zap.String("purpose", string(charge.Purpose)),
					zap.String("idempotency_key", charge.IdempotencyKey),
					zap.Int64("amount", charge.Amount),
					zap.String("currency", charge.Currency),
				)
				continue
			}
			if err := s.chargeLog.MarkReconciled(ctx, s.db, ref, now); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.charge.reconcile.failed", JobReconcileCharges, charge.BoostID, err)
				continue
			}
			linkedCount++
		}
		run.AddProcessed(linkedCount)
		obsmetrics.Scheduler().AddBatchProcessed(JobReconcileCharges, resourceCharges, linkedCount)
		if len(charges) < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}

func (s *Scheduler) notify(ctx context.Context, userID string, kind notification.Kind, payload map[string]any) {
	if err := s.notifier.Notify(ctx, userID, kind, payload); err != nil {
		s.logger(ctx).Warn("notification failed",
			zap.String("kind", string(kind)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
