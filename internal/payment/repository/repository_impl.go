package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindChargeByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Charge, error) {
	var item domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, idempotency_key, payer_id, amount, currency, method, provider, status,
			failure_reason, transaction_ref, purpose, boost_id, reconciled_at, created_at, updated_at
		 FROM payment_charges
		 WHERE idempotency_key = ?
		 LIMIT 1`,
		key,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertCharge(ctx context.Context, db *gorm.DB, charge *domain.Charge) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(charge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RetryFailedCharge flips a failed attempt to succeeded. It only matches rows still failed.
func (r *repo) RetryFailedCharge(ctx context.Context, db *gorm.DB, id snowflake.ID, provider string, ref string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_charges
		 SET status = ?, provider = ?, transaction_ref = ?, failure_reason = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.ChargeStatusSucceeded,
		provider,
		ref,
		now,
		id,
		domain.ChargeStatusFailed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_charges
		 SET failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		reason,
		now,
		id,
		domain.ChargeStatusFailed,
	).Error
}

func (r *repo) MarkReconciled(ctx context.Context, db *gorm.DB, transactionRef string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_charges
		 SET reconciled_at = ?, updated_at = ?
		 WHERE transaction_ref = ? AND reconciled_at IS NULL`,
		at,
		at,
		transactionRef,
	).Error
}

func (r *repo) ListUnreconciled(ctx context.Context, db *gorm.DB, purposes []domain.Purpose, createdBefore time.Time, afterID snowflake.ID, limit int) ([]domain.Charge, error) {
	var items []domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, idempotency_key, payer_id, amount, currency, method, provider, status,
			failure_reason, transaction_ref, purpose, boost_id, reconciled_at, created_at, updated_at
		 FROM payment_charges
		 WHERE status = ? AND reconciled_at IS NULL AND purpose IN ?
			AND created_at <= ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.ChargeStatusSucceeded,
		purposes,
		createdBefore,
		afterID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindWallet(ctx context.Context, db *gorm.DB, sellerID, currency string) (*domain.Wallet, error) {
	var item domain.Wallet
	err := db.WithContext(ctx).Raw(
		`SELECT seller_id, currency, balance, updated_at
		 FROM seller_wallets
		 WHERE seller_id = ? AND currency = ?
		 LIMIT 1`,
		sellerID,
		currency,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.SellerID == "" {
		return nil, nil
	}
	return &item, nil
}
