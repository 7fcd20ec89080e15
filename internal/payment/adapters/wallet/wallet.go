package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/boostd/internal/payment/domain"
	"gorm.io/gorm"
)

const refPrefix = "WAL"

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Provider() string { return domain.ProviderWallet }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	return &Adapter{autoCreate: cfg.AutoCreateWallet}, nil
}

// Adapter debits and credits seller wallets with conditional updates so a
// balance never goes negative.
type Adapter struct {
	autoCreate bool
}

func (a *Adapter) Charge(ctx context.Context, tx *gorm.DB, req domain.ChargeRequest, now time.Time) (string, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_wallets
		 SET balance = balance - ?, updated_at = ?
		 WHERE seller_id = ? AND currency = ? AND balance >= ?`,
		req.Amount,
		now,
		req.PayerID,
		req.Currency,
		req.Amount,
	)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("%w: wallet %s/%s", domain.ErrInsufficientFunds, req.PayerID, req.Currency)
	}
	return newRef(), nil
}

func (a *Adapter) Refund(ctx context.Context, tx *gorm.DB, req domain.RefundRequest, now time.Time) (string, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_wallets
		 SET balance = balance + ?, updated_at = ?
		 WHERE seller_id = ? AND currency = ?`,
		req.Amount,
		now,
		req.PayerID,
		req.Currency,
	)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		if !a.autoCreate {
			return "", errors.New("wallet_not_found")
		}
		if err := tx.WithContext(ctx).Create(&domain.Wallet{
			SellerID:  req.PayerID,
			Currency:  req.Currency,
			Balance:   req.Amount,
			UpdatedAt: now,
		}).Error; err != nil {
			return "", err
		}
	}
	return newRef(), nil
}

func newRef() string {
	return refPrefix + "-" + ulid.Make().String()
}
