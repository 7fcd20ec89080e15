package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	"github.com/smallbiznis/boostd/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Registry   *adapters.Registry
	Repo       paymentdomain.Repository
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	adapters   map[string]paymentdomain.PaymentAdapter
	accepted   map[string]struct{}
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) (*Service, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	adapterCfg := paymentdomain.AdapterConfig{
		DB:               p.DB,
		AutoCreateWallet: p.Cfg.Payment.WalletAutoCreate,
	}
	built := make(map[string]paymentdomain.PaymentAdapter)
	for _, provider := range p.Registry.Providers() {
		adapter, err := p.Registry.NewAdapter(provider, adapterCfg)
		if err != nil {
			return nil, err
		}
		built[provider] = adapter
	}
	accepted := make(map[string]struct{}, len(p.Cfg.Payment.AcceptedMethods))
	for _, method := range p.Cfg.Payment.AcceptedMethods {
		accepted[strings.ToLower(strings.TrimSpace(method))] = struct{}{}
	}

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		adapters:   built,
		accepted:   accepted,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}, nil
}

// Charge collects money once per idempotency key. A repeated key returns the
// earlier successful result; a key whose last attempt failed is retried.
func (s *Service) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.ChargeResult, error) {
	req.PayerID = strings.TrimSpace(req.PayerID)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := s.validateCharge(req); err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	provider := paymentdomain.ProviderForMethod(req.Method)
	adapter, ok := s.adapters[provider]
	if !ok {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrProviderNotFound
	}

	now := s.clock.Now().UTC()
	var result paymentdomain.ChargeResult
	var existing *paymentdomain.Charge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindChargeByKey(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		existing = found
		if found != nil && found.Status == paymentdomain.ChargeStatusSucceeded {
			result = resultFromCharge(found, true)
			return nil
		}

		ref, err := adapter.Charge(ctx, tx, req, now)
		if err != nil {
			return err
		}

		if found != nil {
			ok, err := s.repo.RetryFailedCharge(ctx, tx, found.ID, provider, ref, now)
			if err != nil {
				return err
			}
			if !ok {
				return paymentdomain.ErrChargeInProgress
			}
			result = paymentdomain.ChargeResult{ChargeID: found.ID, Provider: provider, TransactionRef: ref}
			return nil
		}

		charge := paymentdomain.Charge{
			ID:             s.genID.Generate(),
			IdempotencyKey: req.IdempotencyKey,
			PayerID:        req.PayerID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			Method:         req.Method,
			Provider:       provider,
			Status:         paymentdomain.ChargeStatusSucceeded,
			TransactionRef: &ref,
			Purpose:        req.Purpose,
			BoostID:        req.BoostID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		inserted, err := s.repo.InsertCharge(ctx, tx, &charge)
		if err != nil {
			return err
		}
		if !inserted {
			return paymentdomain.ErrChargeInProgress
		}
		result = resultFromCharge(&charge, false)
		return nil
	})
	if err != nil {
		if isDecline(err) {
			s.recordFailure(ctx, req, provider, existing, err, now)
		}
		s.observe(ctx, provider, req.Purpose, "failed")
		s.log.Warn("payment charge failed",
			zap.String("provider", provider),
			zap.String("purpose", string(req.Purpose)),
			zap.String("boost_id", req.BoostID.String()),
			zap.Error(err),
		)
		return paymentdomain.ChargeResult{}, err
	}

	outcome := "succeeded"
	if result.Replayed {
		outcome = "replayed"
	}
	s.observe(ctx, provider, req.Purpose, outcome)
	s.log.Info("payment charge settled",
		zap.String("provider", provider),
		zap.String("purpose", string(req.Purpose)),
		zap.String("boost_id", req.BoostID.String()),
		zap.Bool("replayed", result.Replayed),
	)
	return result, nil
}

// Refund credits the seller wallet once per idempotency key.
func (s *Service) Refund(ctx context.Context, req paymentdomain.RefundRequest) (paymentdomain.ChargeResult, error) {
	req.PayerID = strings.TrimSpace(req.PayerID)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	switch {
	case req.PayerID == "":
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidPayer
	case req.Amount <= 0:
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidAmount
	case req.Currency == "":
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidCurrency
	case req.IdempotencyKey == "":
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingIdempotency
	}

	provider := paymentdomain.ProviderWallet
	adapter, ok := s.adapters[provider]
	if !ok {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrProviderNotFound
	}

	now := s.clock.Now().UTC()
	var result paymentdomain.ChargeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindChargeByKey(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if found != nil && found.Status == paymentdomain.ChargeStatusSucceeded {
			result = resultFromCharge(found, true)
			return nil
		}

		ref, err := adapter.Refund(ctx, tx, req, now)
		if err != nil {
			return err
		}
		if found != nil {
			ok, err := s.repo.RetryFailedCharge(ctx, tx, found.ID, provider, ref, now)
			if err != nil {
				return err
			}
			if !ok {
				return paymentdomain.ErrChargeInProgress
			}
			result = paymentdomain.ChargeResult{ChargeID: found.ID, Provider: provider, TransactionRef: ref}
			return nil
		}

		charge := paymentdomain.Charge{
			ID:             s.genID.Generate(),
			IdempotencyKey: req.IdempotencyKey,
			PayerID:        req.PayerID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			Method:         paymentdomain.MethodWallet,
			Provider:       provider,
			Status:         paymentdomain.ChargeStatusSucceeded,
			TransactionRef: &ref,
			Purpose:        paymentdomain.PurposeRefund,
			BoostID:        req.BoostID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		inserted, err := s.repo.InsertCharge(ctx, tx, &charge)
		if err != nil {
			return err
		}
		if !inserted {
			return paymentdomain.ErrChargeInProgress
		}
		result = resultFromCharge(&charge, false)
		return nil
	})
	if err != nil {
		s.observe(ctx, provider, paymentdomain.PurposeRefund, "failed")
		return paymentdomain.ChargeResult{}, err
	}
	s.observe(ctx, provider, paymentdomain.PurposeRefund, "succeeded")
	return result, nil
}

func (s *Service) MarkReconciled(ctx context.Context, tx *gorm.DB, transactionRef string, at time.Time) error {
	if tx == nil {
		tx = s.db
	}
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil
	}
	return s.repo.MarkReconciled(ctx, tx, transactionRef, at)
}

func (s *Service) ListUnreconciled(ctx context.Context, purposes []paymentdomain.Purpose, createdBefore time.Time, afterID snowflake.ID, limit int) ([]paymentdomain.Charge, error) {
	if len(purposes) == 0 || limit <= 0 {
		return nil, nil
	}
	return s.repo.ListUnreconciled(ctx, s.db, purposes, createdBefore, afterID, limit)
}

// TopUp credits a seller wallet, creating it when missing.
func (s *Service) TopUp(ctx context.Context, sellerID, currency string, amount int64) (*paymentdomain.Wallet, error) {
	sellerID = strings.TrimSpace(sellerID)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if sellerID == "" {
		return nil, paymentdomain.ErrInvalidPayer
	}
	if currency == "" {
		return nil, paymentdomain.ErrInvalidCurrency
	}
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	var wallet *paymentdomain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE seller_wallets SET balance = balance + ?, updated_at = ?
			 WHERE seller_id = ? AND currency = ?`,
			amount, now, sellerID, currency,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&paymentdomain.Wallet{
				SellerID:  sellerID,
				Currency:  currency,
				Balance:   amount,
				UpdatedAt: now,
			}).Error; err != nil {
				return err
			}
		}
		found, err := s.repo.FindWallet(ctx, tx, sellerID, currency)
		if err != nil {
			return err
		}
		wallet = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *Service) Balance(ctx context.Context, sellerID, currency string) (int64, error) {
	wallet, err := s.repo.FindWallet(ctx, s.db, strings.TrimSpace(sellerID), strings.ToUpper(strings.TrimSpace(currency)))
	if err != nil {
		return 0, err
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

func (s *Service) validateCharge(req paymentdomain.ChargeRequest) error {
	switch {
	case req.PayerID == "":
		return paymentdomain.ErrInvalidPayer
	case req.Amount <= 0:
		return paymentdomain.ErrInvalidAmount
	case req.Currency == "":
		return paymentdomain.ErrInvalidCurrency
	case req.IdempotencyKey == "":
		return paymentdomain.ErrMissingIdempotency
	}
	if _, ok := s.accepted[req.Method]; !ok {
		return paymentdomain.ErrInvalidMethod
	}
	if paymentdomain.ProviderForMethod(req.Method) == "" {
		return paymentdomain.ErrInvalidMethod
	}
	return nil
}

// recordFailure logs a declined attempt outside the rolled back transaction.
func (s *Service) recordFailure(ctx context.Context, req paymentdomain.ChargeRequest, provider string, existing *paymentdomain.Charge, cause error, now time.Time) {
	reason := cause.Error()
	if existing != nil {
		if err := s.repo.UpdateFailure(ctx, s.db, existing.ID, reason, now); err != nil {
			s.log.Warn("failed to update charge failure", zap.Error(err))
		}
		return
	}
	charge := paymentdomain.Charge{
		ID:             s.genID.Generate(),
		IdempotencyKey: req.IdempotencyKey,
		PayerID:        req.PayerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		Provider:       provider,
		Status:         paymentdomain.ChargeStatusFailed,
		FailureReason:  &reason,
		Purpose:        req.Purpose,
		BoostID:        req.BoostID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.repo.InsertCharge(ctx, s.db, &charge); err != nil {
		s.log.Warn("failed to log declined charge", zap.Error(err))
	}
}

func (s *Service) observe(ctx context.Context, provider string, purpose paymentdomain.Purpose, outcome string) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordPaymentCharge(ctx, provider, string(purpose), outcome)
}

func isDecline(err error) bool {
	return errors.Is(err, paymentdomain.ErrInsufficientFunds) ||
		errors.Is(err, paymentdomain.ErrPaymentDeclined) ||
		errors.Is(err, paymentdomain.ErrMissingReference)
}

func resultFromCharge(charge *paymentdomain.Charge, replayed bool) paymentdomain.ChargeResult {
	ref := ""
	if charge.TransactionRef != nil {
		ref = *charge.TransactionRef
	}
	return paymentdomain.ChargeResult{
		ChargeID:       charge.ID,
		Provider:       charge.Provider,
		TransactionRef: ref,
		Replayed:       replayed,
	}
}
