package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/authorization"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/boost/refund"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	"github.com/smallbiznis/boostd/internal/notification"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	sourceRequest = "request"
	sourceSweep   = "sweep"

	ledgerRefCancel = "cancel"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Pricing    *config.PricingConfigHolder
	Repo       domain.Repository
	Catalog    catalogdomain.Store
	Ledger     ledgerdomain.Service
	Gateway    paymentdomain.Gateway
	ChargeLog  paymentdomain.ChargeLog
	Authz      authorization.Service
	Notifier   notification.Notifier
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	pricing         *config.PricingConfigHolder
	repo            domain.Repository
	catalog         catalogdomain.Store
	ledger          ledgerdomain.Service
	gateway         paymentdomain.Gateway
	chargeLog       paymentdomain.ChargeLog
	authz           authorization.Service
	notifier        notification.Notifier
	clock           clock.Clock
	obsMetrics      *obsmetrics.Metrics
	acceptedMethods []string
	maxWindow       time.Duration
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.NewNoop()
	}
	methods := make([]string, 0, len(p.Cfg.Payment.AcceptedMethods))
	for _, method := range p.Cfg.Payment.AcceptedMethods {
		method = strings.ToLower(strings.TrimSpace(method))
		if method != "" {
			methods = append(methods, method)
		}
	}

	return &Service{
		db:              p.DB,
		log:             p.Log.Named("boost.service"),
		genID:           p.GenID,
		pricing:         p.Pricing,
		repo:            p.Repo,
		catalog:         p.Catalog,
		ledger:          p.Ledger,
		gateway:         p.Gateway,
		chargeLog:       p.ChargeLog,
		authz:           p.Authz,
		notifier:        notifier,
		clock:           clk,
		obsMetrics:      p.ObsMetrics,
		acceptedMethods: methods,
		maxWindow:       p.Cfg.MaxBoostWindow,
	}
}

func (s *Service) PurchaseBoost(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResponse, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostPurchase); err != nil {
		return domain.PurchaseResponse{}, err
	}
	listingID, err := parseID(req.ListingID, domain.ErrInvalidListingID)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	if !domain.IsValidTier(req.Tier) {
		return domain.PurchaseResponse{}, domain.ErrInvalidTier
	}
	duration, err := resolveDuration(req.Tier, req.Duration)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	pricing := s.pricing.Get()
	price, err := quote(pricing, req.Tier, duration)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	privileged := s.authz.IsPrivileged(ctx, req.Actor)
	now := s.clock.Now().UTC()
	end, err := duration.Window(now, s.maxWindow)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	var record domain.BoostRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := s.lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !privileged && listing.SellerID != req.Actor.ID {
			return domain.ErrForbidden
		}

		live, err := s.repo.FindLiveByListing(ctx, tx, listingID, now)
		if err != nil {
			return err
		}
		if len(live) > 0 && !privileged {
			return alreadyBoosted(live[0])
		}

		record = domain.BoostRecord{
			ID:                s.genID.Generate(),
			ListingID:         listingID,
			SellerID:          listing.SellerID,
			Tier:              req.Tier,
			DurationValue:     duration.Value,
			DurationUnit:      duration.Unit,
			StartDate:         now,
			EndDate:           end,
			Price:             price,
			Currency:          pricing.Currency,
			PaymentStatus:     domain.PaymentStatusPending,
			Status:            domain.BoostStatusPending,
			AutoRenewEnabled:  req.AutoRenew,
			IsOverride:        len(live) > 0,
			PerformanceBefore: datatypes.NewJSONType(domain.PerformanceSnapshot{}),
			PerformanceAfter:  datatypes.NewJSONType(domain.PerformanceSnapshot{}),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		return s.repo.Insert(ctx, tx, &record)
	})
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	s.log.Info("boost purchased",
		zap.String("boost_id", record.ID.String()),
		zap.String("listing_id", record.ListingID.String()),
		zap.String("tier", string(record.Tier)),
		zap.Int64("price", record.Price),
		zap.Bool("override", record.IsOverride),
	)

	return domain.PurchaseResponse{
		Boost: record,
		Payment: domain.PaymentInstruction{
			Amount:          record.Price,
			Currency:        record.Currency,
			AcceptedMethods: append([]string(nil), s.acceptedMethods...),
			Reference:       record.ID.String(),
		},
	}, nil
}

func (s *Service) ConfirmBoostPayment(ctx context.Context, req domain.ConfirmPaymentRequest) (domain.BoostRecord, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostConfirm); err != nil {
		return domain.BoostRecord{}, err
	}
	id, err := parseID(req.BoostID, domain.ErrInvalidBoostID)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = paymentdomain.MethodWallet
	}
	if !s.isAcceptedMethod(method) {
		return domain.BoostRecord{}, domain.ErrInvalidPaymentMethod
	}
	externalRef := strings.TrimSpace(req.TransactionRef)
	if method != paymentdomain.MethodWallet && externalRef == "" {
		return domain.BoostRecord{}, domain.ErrMissingTransactionRef
	}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	if err := s.ensureOwner(ctx, req.Actor, record); err != nil {
		return domain.BoostRecord{}, err
	}
	if err := confirmable(record.Status); err != nil {
		return domain.BoostRecord{}, err
	}
	privileged := s.authz.IsPrivileged(ctx, req.Actor)
	covering, _, err := s.activationConflicts(ctx, s.db, record, s.clock.Now().UTC())
	if err != nil {
		return domain.BoostRecord{}, err
	}
	if len(covering) > 0 && !privileged {
		return domain.BoostRecord{}, alreadyBoosted(covering[0])
	}
	if method != paymentdomain.MethodWallet {
		used, err := s.repo.TransactionRefExists(ctx, s.db, externalRef)
		if err != nil {
			return domain.BoostRecord{}, err
		}
		if used {
			return domain.BoostRecord{}, domain.ErrTransactionRefInUse
		}
	}

	charge, err := s.gateway.Charge(ctx, paymentdomain.ChargeRequest{
		PayerID:        record.SellerID,
		Amount:         record.Price,
		Currency:       record.Currency,
		Method:         method,
		IdempotencyKey: "purchase:" + record.ID.String(),
		Purpose:        paymentdomain.PurposePurchase,
		BoostID:        record.ID,
		ExternalRef:    externalRef,
	})
	if err != nil {
		if isChargeDecline(err) {
			if _, markErr := s.repo.MarkPaymentFailed(ctx, s.db, record.ID, method, s.clock.Now().UTC()); markErr != nil {
				s.log.Warn("failed to mark payment failed", zap.String("boost_id", record.ID.String()), zap.Error(markErr))
			}
			return domain.BoostRecord{}, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, err.Error())
		}
		return domain.BoostRecord{}, err
	}

	now := s.clock.Now().UTC()
	var (
		activated *domain.BoostRecord
		expired   int
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockListing(ctx, tx, record.ListingID); err != nil {
			return err
		}
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if err := confirmable(locked.Status); err != nil {
			return err
		}

		covering, lapsed, err := s.activationConflicts(ctx, tx, locked, now)
		if err != nil {
			return err
		}
		if len(covering) > 0 && !privileged {
			return alreadyBoosted(covering[0])
		}
		// lapsed records still count against the one-active index until expired
		for _, other := range lapsed {
			ok, err := s.repo.TransitionStatus(ctx, tx, other.ID, domain.BoostStatusActive, domain.BoostStatusExpired, nil, now)
			if err != nil {
				return err
			}
			if ok {
				expired++
			}
		}

		start, end := locked.StartDate, locked.EndDate
		if start.Before(now) {
			start = now
			end = domain.DurationOf(*locked).AddTo(now)
		}
		var nextRenewal *time.Time
		if locked.AutoRenewEnabled {
			nextRenewal = &end
		}
		before, err := s.snapshot(ctx, tx, locked.ListingID)
		if err != nil {
			return err
		}
		ref := charge.TransactionRef

		ok, err := s.repo.Activate(ctx, tx, domain.ActivateUpdate{
			ID:              locked.ID,
			From:            domain.BoostStatusPending,
			StartDate:       start,
			EndDate:         end,
			PaymentMethod:   method,
			TransactionRef:  &ref,
			NextRenewalDate: nextRenewal,
			Before:          before,
			IsOverride:      locked.IsOverride || len(covering) > 0,
			Now:             now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if _, _, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordRequest{
			Type:       ledgerdomain.EntryTypeBoostSale,
			BoostID:    locked.ID,
			ListingID:  locked.ListingID,
			SellerID:   locked.SellerID,
			Amount:     locked.Price,
			Currency:   locked.Currency,
			SourceRef:  locked.ID.String(),
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if err := s.chargeLog.MarkReconciled(ctx, tx, ref, now); err != nil {
			return err
		}
		if err := s.reconcileProjection(ctx, tx, locked.ListingID, now); err != nil {
			return err
		}

		activated, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if errors.Is(err, domain.ErrAlreadyBoosted) {
		s.releaseCharge(ctx, record, charge)
		return domain.BoostRecord{}, err
	}
	if err != nil {
		return domain.BoostRecord{}, err
	}

	for i := 0; i < expired; i++ {
		s.recordTransition(ctx, domain.BoostStatusActive, domain.BoostStatusExpired, sourceRequest)
	}
	s.recordTransition(ctx, domain.BoostStatusPending, domain.BoostStatusActive, sourceRequest)
	s.log.Info("boost activated",
		zap.String("boost_id", activated.ID.String()),
		zap.String("method", method),
		zap.Bool("replayed_charge", charge.Replayed),
	)
	s.notify(ctx, activated.SellerID, notification.KindBoostActivated, map[string]any{
		"boost_id":   activated.ID,
		"listing_id": activated.ListingID,
		"tier":       activated.Tier,
		"end_date":   activated.EndDate,
	})
	return *activated, nil
}

// activationConflicts splits the listing's other paid records into the ones still
// covering it at now and active ones whose window lapsed before the sweep expired them.
func (s *Service) activationConflicts(ctx context.Context, conn *gorm.DB, record *domain.BoostRecord, now time.Time) ([]domain.BoostRecord, []domain.BoostRecord, error) {
	paid, err := s.repo.FindPaidByListing(ctx, conn, record.ListingID)
	if err != nil {
		return nil, nil, err
	}
	var covering, lapsed []domain.BoostRecord
	for _, other := range paid {
		switch {
		case other.ID == record.ID:
		case other.EndDate.After(now):
			covering = append(covering, other)
		case other.Status == domain.BoostStatusActive:
			lapsed = append(lapsed, other)
		}
	}
	return covering, lapsed, nil
}

// releaseCharge closes a pending record whose payment went through but which lost the
// listing to another boost, and credits the payment back. A failed credit is left to
// the settle_refunds job.
func (s *Service) releaseCharge(ctx context.Context, record *domain.BoostRecord, charge paymentdomain.ChargeResult) {
	now := s.clock.Now().UTC()
	var released *domain.BoostRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Cancel(ctx, tx, domain.CancelUpdate{
			ID:            record.ID,
			From:          domain.BoostStatusPending,
			RefundAmount:  record.Price,
			PaymentStatus: domain.PaymentStatusCompleted,
			Reason:        domain.CancelReasonSuperseded,
			Now:           now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errSkip
		}
		if err := s.chargeLog.MarkReconciled(ctx, tx, charge.TransactionRef, now); err != nil {
			return err
		}
		released, err = s.repo.FindByID(ctx, tx, record.ID)
		return err
	})
	if errors.Is(err, errSkip) {
		s.log.Warn("superseded boost already closed, charge left for reconciliation",
			zap.String("boost_id", record.ID.String()),
			zap.String("transaction_ref", charge.TransactionRef),
		)
		return
	}
	if err != nil {
		s.log.Error("failed to release charge of superseded boost",
			zap.String("boost_id", record.ID.String()),
			zap.String("transaction_ref", charge.TransactionRef),
			zap.Error(err),
		)
		return
	}
	s.recordTransition(ctx, domain.BoostStatusPending, domain.BoostStatusCancelled, sourceRequest)
	if _, err := s.settleRefund(ctx, released); err != nil {
		s.log.Warn("refund credit deferred",
			zap.String("boost_id", released.ID.String()),
			zap.Int64("refund_amount", released.RefundAmount),
			zap.Error(err),
		)
	}
}

func alreadyBoosted(covering domain.BoostRecord) error {
	return fmt.Errorf("%w: boost %s covers listing until %s",
		domain.ErrAlreadyBoosted, covering.ID, covering.EndDate.Format(time.RFC3339))
}

func (s *Service) CancelBoost(ctx context.Context, req domain.CancelRequest) (domain.CancelResponse, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostCancel); err != nil {
		return domain.CancelResponse{}, err
	}
	id, err := parseID(req.BoostID, domain.ErrInvalidBoostID)
	if err != nil {
		return domain.CancelResponse{}, err
	}
	wantRefund := req.Refund == nil || *req.Refund
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.CancelReasonRequested
	}

	now := s.clock.Now().UTC()
	var (
		cancelled    *domain.BoostRecord
		from         domain.BoostStatus
		refundAmount int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if err := s.ensureOwner(ctx, req.Actor, locked); err != nil {
			return err
		}
		if !domain.CanTransition(locked.Status, domain.BoostStatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s boost", domain.ErrInvalidTransition, locked.Status)
		}
		from = locked.Status
		if wantRefund {
			refundAmount = refund.CalculateForRecord(*locked, now)
		}

		ok, err := s.repo.Cancel(ctx, tx, domain.CancelUpdate{
			ID:            locked.ID,
			From:          locked.Status,
			RefundAmount:  refundAmount,
			PaymentStatus: locked.PaymentStatus,
			Reason:        reason,
			Now:           now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if refundAmount > 0 {
			if _, _, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordRequest{
				Type:       ledgerdomain.EntryTypeBoostRefund,
				BoostID:    locked.ID,
				ListingID:  locked.ListingID,
				SellerID:   locked.SellerID,
				Amount:     refundAmount,
				Currency:   locked.Currency,
				SourceRef:  ledgerRefCancel,
				OccurredAt: now,
			}); err != nil {
				return err
			}
		}
		if err := s.reconcileProjection(ctx, tx, locked.ListingID, now); err != nil {
			return err
		}

		cancelled, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.CancelResponse{}, err
	}

	if refundAmount > 0 {
		if settled, err := s.settleRefund(ctx, cancelled); err != nil {
			s.log.Warn("refund credit deferred",
				zap.String("boost_id", cancelled.ID.String()),
				zap.Int64("refund_amount", refundAmount),
				zap.Error(err),
			)
		} else if settled {
			cancelled.PaymentStatus = domain.PaymentStatusRefunded
		}
	}

	s.recordTransition(ctx, from, domain.BoostStatusCancelled, sourceRequest)
	s.log.Info("boost cancelled",
		zap.String("boost_id", cancelled.ID.String()),
		zap.String("from", string(from)),
		zap.Int64("refund_amount", refundAmount),
	)
	s.notify(ctx, cancelled.SellerID, notification.KindBoostCancelled, map[string]any{
		"boost_id":      cancelled.ID,
		"listing_id":    cancelled.ListingID,
		"refund_amount": refundAmount,
		"currency":      cancelled.Currency,
	})

	return domain.CancelResponse{
		Boost:        *cancelled,
		RefundAmount: refundAmount,
		Message:      cancelMessage(refundAmount, cancelled.Currency, wantRefund),
	}, nil
}

func (s *Service) GrantBoost(ctx context.Context, req domain.GrantRequest) (domain.BoostRecord, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostGrant); err != nil {
		return domain.BoostRecord{}, err
	}
	listingID, err := parseID(req.ListingID, domain.ErrInvalidListingID)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	tier := req.Tier
	if tier == "" {
		tier = domain.TierCustom
	}
	if !domain.IsValidTier(tier) {
		return domain.BoostRecord{}, domain.ErrInvalidTier
	}
	duration := permanentGrant
	if req.Duration != nil {
		if err := req.Duration.Validate(); err != nil {
			return domain.BoostRecord{}, err
		}
		duration = *req.Duration
	}

	now := s.clock.Now().UTC()
	end, err := duration.Window(now, 0)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	currency := s.pricing.Get().Currency
	var record domain.BoostRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := s.lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		live, err := s.repo.FindLiveByListing(ctx, tx, listingID, now)
		if err != nil {
			return err
		}

		activatedAt := now
		record = domain.BoostRecord{
			ID:                s.genID.Generate(),
			ListingID:         listingID,
			SellerID:          listing.SellerID,
			Tier:              tier,
			DurationValue:     duration.Value,
			DurationUnit:      duration.Unit,
			StartDate:         now,
			EndDate:           end,
			Currency:          currency,
			PaymentMethod:     "grant",
			PaymentStatus:     domain.PaymentStatusCompleted,
			Status:            domain.BoostStatusActive,
			ActivatedAt:       &activatedAt,
			IsOverride:        len(live) > 0,
			IsGrant:           true,
			PerformanceBefore: datatypes.NewJSONType(snapshotOf(listing)),
			PerformanceAfter:  datatypes.NewJSONType(domain.PerformanceSnapshot{}),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			return err
		}
		return s.reconcileProjection(ctx, tx, listingID, now)
	})
	if err != nil {
		return domain.BoostRecord{}, err
	}

	s.recordTransition(ctx, "", domain.BoostStatusActive, sourceRequest)
	s.log.Info("boost granted",
		zap.String("boost_id", record.ID.String()),
		zap.String("listing_id", record.ListingID.String()),
		zap.String("granted_by", req.Actor.ID),
	)
	return record, nil
}

func (s *Service) SetAutoRenew(ctx context.Context, req domain.SetAutoRenewRequest) (domain.BoostRecord, error) {
	if err := s.authorize(ctx, req.Actor, authorization.ActionBoostAutoRenew); err != nil {
		return domain.BoostRecord{}, err
	}
	id, err := parseID(req.BoostID, domain.ErrInvalidBoostID)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	if req.MaxRenewals != nil && *req.MaxRenewals < 0 {
		return domain.BoostRecord{}, domain.ErrInvalidMaxRenewals
	}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	if err := s.ensureOwner(ctx, req.Actor, record); err != nil {
		return domain.BoostRecord{}, err
	}
	if !domain.IsLive(record.Status) {
		return domain.BoostRecord{}, fmt.Errorf("%w: auto-renew cannot change on a %s boost", domain.ErrInvalidTransition, record.Status)
	}
	if record.IsGrant && req.Enabled {
		return domain.BoostRecord{}, fmt.Errorf("%w: granted boosts do not renew", domain.ErrInvalidTransition)
	}

	maxRenewals := record.MaxRenewals
	if req.MaxRenewals != nil {
		maxRenewals = *req.MaxRenewals
	}
	var nextRenewal *time.Time
	if req.Enabled {
		end := record.EndDate
		nextRenewal = &end
	}

	ok, err := s.repo.SetAutoRenew(ctx, s.db, id, req.Enabled, maxRenewals, nextRenewal, s.clock.Now().UTC())
	if err != nil {
		return domain.BoostRecord{}, err
	}
	if !ok {
		return domain.BoostRecord{}, domain.ErrInvalidTransition
	}

	updated, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.BoostRecord{}, err
	}
	return *updated, nil
}

func (s *Service) authorize(ctx context.Context, actor authorization.Actor, action string) error {
	if actor.IsZero() {
		return domain.ErrInvalidActor
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectBoost, action); err != nil {
		switch {
		case errors.Is(err, authorization.ErrForbidden):
			return domain.ErrForbidden
		case errors.Is(err, authorization.ErrInvalidActor):
			return domain.ErrInvalidActor
		default:
			return err
		}
	}
	return nil
}

// ensureOwner allows the record's seller and privileged actors.
func (s *Service) ensureOwner(ctx context.Context, actor authorization.Actor, record *domain.BoostRecord) error {
	if record.SellerID == actor.ID && actor.Role == authorization.RoleSeller {
		return nil
	}
	if s.authz.IsPrivileged(ctx, actor) {
		return nil
	}
	return domain.ErrForbidden
}

func (s *Service) lockListing(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*catalogdomain.Listing, error) {
	listing, err := s.catalog.GetListingForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrListingNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

func (s *Service) snapshot(ctx context.Context, tx *gorm.DB, listingID snowflake.ID) (domain.PerformanceSnapshot, error) {
	listing, err := s.catalog.GetListing(ctx, tx, listingID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrListingNotFound) {
			return domain.PerformanceSnapshot{}, nil
		}
		return domain.PerformanceSnapshot{}, err
	}
	return snapshotOf(listing), nil
}

func (s *Service) isAcceptedMethod(method string) bool {
	for _, accepted := range s.acceptedMethods {
		if accepted == method {
			return true
		}
	}
	return false
}

func (s *Service) recordTransition(ctx context.Context, from, to domain.BoostStatus, source string) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordBoostTransition(ctx, string(from), string(to), source)
}

// notify never fails the caller.
func (s *Service) notify(ctx context.Context, userID string, kind notification.Kind, payload map[string]any) {
	if err := s.notifier.Notify(ctx, userID, kind, payload); err != nil {
		s.log.Warn("notification failed",
			zap.String("kind", string(kind)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func confirmable(status domain.BoostStatus) error {
	switch status {
	case domain.BoostStatusPending:
		return nil
	case domain.BoostStatusActive:
		return domain.ErrAlreadyActive
	default:
		return fmt.Errorf("%w: cannot confirm a %s boost", domain.ErrInvalidTransition, status)
	}
}

func snapshotOf(listing *catalogdomain.Listing) domain.PerformanceSnapshot {
	return domain.PerformanceSnapshot{
		Views:   listing.ViewCount,
		Clicks:  listing.ClickCount,
		Sales:   listing.SalesCount,
		Revenue: listing.Revenue,
	}
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func isChargeDecline(err error) bool {
	return errors.Is(err, paymentdomain.ErrInsufficientFunds) ||
		errors.Is(err, paymentdomain.ErrPaymentDeclined) ||
		errors.Is(err, paymentdomain.ErrMissingReference)
}

func cancelMessage(amount int64, currency string, requested bool) string {
	switch {
	case amount > 0:
		return fmt.Sprintf("Boost cancelled. %d %s will be credited to your wallet.", amount, currency)
	case !requested:
		return "Boost cancelled without refund."
	default:
		return "Boost cancelled. No refund is due for this boost."
	}
}
