package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	"github.com/smallbiznis/boostd/internal/notification"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errSkip rolls back a sweep transaction whose record no longer qualifies.
var errSkip = errors.New("skip")

// ExpireBoost moves an active record past its end date to expired and
// re-projects the listing.
func (s *Service) ExpireBoost(ctx context.Context, id snowflake.ID) (bool, error) {
	now := s.clock.Now().UTC()
	var expired *domain.BoostRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lockForSweep(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != domain.BoostStatusActive || now.Before(locked.EndDate) {
			return errSkip
		}
		ok, err := s.repo.TransitionStatus(ctx, tx, id, domain.BoostStatusActive, domain.BoostStatusExpired, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return errSkip
		}
		if err := s.reconcileProjection(ctx, tx, locked.ListingID, now); err != nil {
			return err
		}
		expired = locked
		return nil
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.recordTransition(ctx, domain.BoostStatusActive, domain.BoostStatusExpired, sourceSweep)
	s.notify(ctx, expired.SellerID, notification.KindBoostExpired, map[string]any{
		"boost_id":   expired.ID,
		"listing_id": expired.ListingID,
		"end_date":   expired.EndDate,
	})
	return true, nil
}

// ActivateScheduledBoost starts a renewal successor once its window opens.
func (s *Service) ActivateScheduledBoost(ctx context.Context, id snowflake.ID) (bool, error) {
	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lockForSweep(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != domain.BoostStatusScheduled || now.Before(locked.StartDate) {
			return errSkip
		}
		ok, err := s.repo.TransitionStatus(ctx, tx, id, domain.BoostStatusScheduled, domain.BoostStatusActive, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return errSkip
		}
		return s.reconcileProjection(ctx, tx, locked.ListingID, now)
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.recordTransition(ctx, domain.BoostStatusScheduled, domain.BoostStatusActive, sourceSweep)
	return true, nil
}

// ExpireStalePendingBoost closes a purchase that was never paid.
func (s *Service) ExpireStalePendingBoost(ctx context.Context, id snowflake.ID) (bool, error) {
	now := s.clock.Now().UTC()
	reason := domain.CancelReasonPaymentTimeout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lockForSweep(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != domain.BoostStatusPending {
			return errSkip
		}
		ok, err := s.repo.TransitionStatus(ctx, tx, id, domain.BoostStatusPending, domain.BoostStatusExpired, &reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return errSkip
		}
		return nil
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.recordTransition(ctx, domain.BoostStatusPending, domain.BoostStatusExpired, sourceSweep)
	return true, nil
}

// RenewBoost charges for the next period and, on success, inserts the successor
// record. The charge is keyed by renewal count so a retried cycle reuses it.
func (s *Service) RenewBoost(ctx context.Context, id snowflake.ID) (domain.RenewalResult, error) {
	skipped := domain.RenewalResult{Outcome: domain.RenewalOutcomeSkipped}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if errors.Is(err, domain.ErrNotFound) {
		return skipped, nil
	}
	if err != nil {
		return domain.RenewalResult{}, err
	}
	if record.Status != domain.BoostStatusActive || !domain.CanRenew(*record) {
		return skipped, nil
	}
	if record.IsGrant || record.Price <= 0 {
		return skipped, nil
	}
	hasSuccessor, err := s.repo.HasSuccessor(ctx, s.db, id)
	if err != nil {
		return domain.RenewalResult{}, err
	}
	if hasSuccessor {
		return skipped, nil
	}

	key := fmt.Sprintf("renewal:%s:%d", record.ID, record.RenewalCount)
	charge, err := s.gateway.Charge(ctx, paymentdomain.ChargeRequest{
		PayerID:        record.SellerID,
		Amount:         record.Price,
		Currency:       record.Currency,
		Method:         paymentdomain.MethodWallet,
		IdempotencyKey: key,
		Purpose:        paymentdomain.PurposeRenewal,
		BoostID:        record.ID,
	})
	if err != nil {
		if !isChargeDecline(err) {
			return domain.RenewalResult{}, err
		}
		if _, disableErr := s.repo.DisableAutoRenew(ctx, s.db, id, s.clock.Now().UTC()); disableErr != nil {
			return domain.RenewalResult{}, disableErr
		}
		s.notify(ctx, record.SellerID, notification.KindBoostRenewalFailed, map[string]any{
			"boost_id":   record.ID,
			"listing_id": record.ListingID,
			"amount":     record.Price,
			"currency":   record.Currency,
			"reason":     err.Error(),
		})
		s.log.Info("boost renewal declined",
			zap.String("boost_id", record.ID.String()),
			zap.Error(err),
		)
		return domain.RenewalResult{
			Outcome: domain.RenewalOutcomeFailed,
			Reason:  fmt.Errorf("%w: %s", domain.ErrInsufficientRenewalFunds, err.Error()),
		}, nil
	}

	now := s.clock.Now().UTC()
	var successor domain.BoostRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if locked.Status != domain.BoostStatusActive {
			return fmt.Errorf("%w: boost %s became %s during renewal", domain.ErrInvalidTransition, id, locked.Status)
		}

		start := locked.EndDate
		end := domain.DurationOf(*locked).AddTo(start)
		ok, err := s.repo.RecordRenewal(ctx, tx, id, locked.RenewalCount, end, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: boost %s renewed concurrently", domain.ErrInvalidTransition, id)
		}

		status := domain.BoostStatusScheduled
		ref := charge.TransactionRef
		successor = domain.BoostRecord{
			ID:                s.genID.Generate(),
			ListingID:         locked.ListingID,
			SellerID:          locked.SellerID,
			Tier:              locked.Tier,
			DurationValue:     locked.DurationValue,
			DurationUnit:      locked.DurationUnit,
			StartDate:         start,
			EndDate:           end,
			Price:             locked.Price,
			Currency:          locked.Currency,
			PaymentMethod:     paymentdomain.MethodWallet,
			PaymentStatus:     domain.PaymentStatusCompleted,
			TransactionRef:    &ref,
			AutoRenewEnabled:  true,
			NextRenewalDate:   &end,
			RenewalCount:      locked.RenewalCount + 1,
			MaxRenewals:       locked.MaxRenewals,
			RenewedFromID:     &locked.ID,
			IsOverride:        locked.IsOverride,
			PerformanceBefore: locked.PerformanceBefore,
			PerformanceAfter:  datatypes.NewJSONType(domain.PerformanceSnapshot{}),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if !start.After(now) {
			status = domain.BoostStatusActive
			activated := now
			successor.ActivatedAt = &activated
		}
		successor.Status = status
		if err := s.repo.Insert(ctx, tx, &successor); err != nil {
			return err
		}

		if _, _, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordRequest{
			Type:       ledgerdomain.EntryTypeBoostRenewal,
			BoostID:    successor.ID,
			ListingID:  successor.ListingID,
			SellerID:   successor.SellerID,
			Amount:     successor.Price,
			Currency:   successor.Currency,
			SourceRef:  key,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if err := s.chargeLog.MarkReconciled(ctx, tx, ref, now); err != nil {
			return err
		}
		return s.reconcileProjection(ctx, tx, locked.ListingID, now)
	})
	if err != nil {
		s.log.Warn("renewal charged but not persisted",
			zap.String("boost_id", id.String()),
			zap.String("charge_id", charge.ChargeID.String()),
			zap.Error(err),
		)
		return domain.RenewalResult{}, fmt.Errorf("%w: %w", domain.ErrRenewalNotPersisted, err)
	}

	s.recordTransition(ctx, "", successor.Status, sourceSweep)
	s.notify(ctx, successor.SellerID, notification.KindBoostRenewed, map[string]any{
		"boost_id":        successor.ID,
		"renewed_from_id": id,
		"listing_id":      successor.ListingID,
		"end_date":        successor.EndDate,
		"amount":          successor.Price,
		"currency":        successor.Currency,
	})
	return domain.RenewalResult{Outcome: domain.RenewalOutcomeRenewed, Successor: &successor}, nil
}

// RefreshPerformance captures the listing counters into performance_after.
func (s *Service) RefreshPerformance(ctx context.Context, id snowflake.ID) (bool, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if record.Status != domain.BoostStatusActive {
		return false, nil
	}
	snapshot, err := s.snapshot(ctx, s.db, record.ListingID)
	if err != nil {
		return false, err
	}
	return s.repo.UpdatePerformanceAfter(ctx, s.db, id, snapshot, s.clock.Now().UTC())
}

func (s *Service) SettleRefund(ctx context.Context, id snowflake.ID) (bool, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.settleRefund(ctx, record)
}

// settleRefund credits the seller wallet and marks the record refunded.
// The refund key is per record so retries never pay twice.
func (s *Service) settleRefund(ctx context.Context, record *domain.BoostRecord) (bool, error) {
	if record.Status != domain.BoostStatusCancelled ||
		record.PaymentStatus != domain.PaymentStatusCompleted ||
		record.RefundAmount <= 0 {
		return false, nil
	}

	originalRef := ""
	if record.TransactionRef != nil {
		originalRef = *record.TransactionRef
	}
	result, err := s.gateway.Refund(ctx, paymentdomain.RefundRequest{
		PayerID:        record.SellerID,
		Amount:         record.RefundAmount,
		Currency:       record.Currency,
		IdempotencyKey: "refund:" + record.ID.String(),
		BoostID:        record.ID,
		OriginalRef:    originalRef,
	})
	if err != nil {
		return false, err
	}

	now := s.clock.Now().UTC()
	var marked bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkRefunded(ctx, tx, record.ID, now)
		if err != nil {
			return err
		}
		marked = ok
		return s.chargeLog.MarkReconciled(ctx, tx, result.TransactionRef, now)
	})
	if err != nil {
		return false, err
	}
	return marked, nil
}

// lockForSweep claims the row, skipping it when another worker holds it.
func (s *Service) lockForSweep(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.BoostRecord, error) {
	locked, err := s.repo.FindByIDForUpdate(ctx, tx, id, true)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errSkip
	}
	return locked, err
}
