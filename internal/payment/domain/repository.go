package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindChargeByKey(ctx context.Context, db *gorm.DB, key string) (*Charge, error)
	InsertCharge(ctx context.Context, db *gorm.DB, charge *Charge) (bool, error)
	RetryFailedCharge(ctx context.Context, db *gorm.DB, id snowflake.ID, provider string, ref string, now time.Time) (bool, error)
	UpdateFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error
	MarkReconciled(ctx context.Context, db *gorm.DB, transactionRef string, at time.Time) error
	ListUnreconciled(ctx context.Context, db *gorm.DB, purposes []Purpose, createdBefore time.Time, afterID snowflake.ID, limit int) ([]Charge, error)
	FindWallet(ctx context.Context, db *gorm.DB, sellerID, currency string) (*Wallet, error)
}
