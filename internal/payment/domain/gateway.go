package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ChargeRequest struct {
	PayerID        string
	Amount         int64
	Currency       string
	Method         string
	IdempotencyKey string
	Purpose        Purpose
	BoostID        snowflake.ID
	// ExternalRef is the confirmation reference for externally settled methods.
	ExternalRef string
}

type RefundRequest struct {
	PayerID        string
	Amount         int64
	Currency       string
	IdempotencyKey string
	BoostID        snowflake.ID
	OriginalRef    string
}

type ChargeResult struct {
	ChargeID       snowflake.ID
	Provider       string
	TransactionRef string
	// Replayed is true when the idempotency key matched an earlier successful charge.
	Replayed bool
}

//go:generate mockgen -source=gateway.go -destination=./mocks/mock_gateway.go -package=mocks
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (ChargeResult, error)
}

// ChargeLog is the read and bookkeeping side of the charge log.
type ChargeLog interface {
	MarkReconciled(ctx context.Context, tx *gorm.DB, transactionRef string, at time.Time) error
	ListUnreconciled(ctx context.Context, purposes []Purpose, createdBefore time.Time, afterID snowflake.ID, limit int) ([]Charge, error)
}

type AdapterConfig struct {
	DB               *gorm.DB
	AutoCreateWallet bool
}

// PaymentAdapter moves money for one provider. Calls run inside the caller's transaction.
type PaymentAdapter interface {
	Charge(ctx context.Context, tx *gorm.DB, req ChargeRequest, now time.Time) (string, error)
	Refund(ctx context.Context, tx *gorm.DB, req RefundRequest, now time.Time) (string, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

var (
	ErrPaymentDeclined    = errors.New("payment_declined")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrProviderNotFound   = errors.New("payment_provider_not_found")
	ErrInvalidPayer       = errors.New("invalid_payer")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidMethod      = errors.New("invalid_payment_method")
	ErrMissingIdempotency = errors.New("missing_idempotency_key")
	ErrMissingReference   = errors.New("missing_external_reference")
	ErrChargeInProgress   = errors.New("charge_in_progress")
	ErrInvalidConfig      = errors.New("invalid_payment_config")
)
