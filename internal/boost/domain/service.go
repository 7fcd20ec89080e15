package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/authorization"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	"github.com/smallbiznis/boostd/pkg/db/pagination"
)

type PurchaseRequest struct {
	ListingID string              `json:"listing_id"`
	Tier      Tier                `json:"tier"`
	Duration  *Duration           `json:"duration,omitempty"`
	AutoRenew bool                `json:"auto_renew"`
	Actor     authorization.Actor `json:"-"`
}

// PaymentInstruction tells the caller how to settle a pending boost.
type PaymentInstruction struct {
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	AcceptedMethods []string `json:"accepted_methods"`
	Reference       string   `json:"reference"`
}

type PurchaseResponse struct {
	Boost   BoostRecord        `json:"boost"`
	Payment PaymentInstruction `json:"payment"`
}

type ConfirmPaymentRequest struct {
	BoostID        string              `json:"-"`
	PaymentMethod  string              `json:"payment_method"`
	TransactionRef string              `json:"transaction_ref"`
	Actor          authorization.Actor `json:"-"`
}

type CancelRequest struct {
	BoostID string              `json:"-"`
	Refund  *bool               `json:"refund,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Actor   authorization.Actor `json:"-"`
}

type CancelResponse struct {
	Boost        BoostRecord `json:"boost"`
	RefundAmount int64       `json:"refund_amount"`
	Message      string      `json:"message"`
}

type GrantRequest struct {
	ListingID string              `json:"listing_id"`
	Tier      Tier                `json:"tier"`
	Duration  *Duration           `json:"duration,omitempty"`
	Actor     authorization.Actor `json:"-"`
}

type SetAutoRenewRequest struct {
	BoostID     string              `json:"-"`
	Enabled     bool                `json:"enabled"`
	MaxRenewals *int                `json:"max_renewals,omitempty"`
	Actor       authorization.Actor `json:"-"`
}

type ListBoostsRequest struct {
	SellerID  string
	ListingID string
	Status    string
	Tier      string
	PageToken string
	PageSize  int
	Actor     authorization.Actor
}

// BoostStats summarises the filtered set, independent of the page.
type BoostStats struct {
	Count             int64            `json:"count"`
	TotalSpend        int64            `json:"total_spend"`
	AutoRenewing      int64            `json:"auto_renewing"`
	ByTier            map[string]int64 `json:"by_tier"`
	ExpiringWithin24h int64            `json:"expiring_within_24h"`
}

type ListBoostsResponse struct {
	pagination.PageInfo
	Boosts []BoostRecord `json:"boosts"`
	Stats  BoostStats    `json:"stats"`
}

// BoostMetrics are values derived from a record at a point in time.
type BoostMetrics struct {
	IsActive      bool                `json:"is_active"`
	DaysRemaining int                 `json:"days_remaining"`
	UsedFraction  float64             `json:"used_fraction"`
	ROI           float64             `json:"roi"`
	Delta         PerformanceSnapshot `json:"performance_delta"`
	RefundIfNow   int64               `json:"refund_if_cancelled_now"`
}

type BoostDetail struct {
	Boost         BoostRecord                `json:"boost"`
	Metrics       BoostMetrics               `json:"metrics"`
	LedgerEntries []ledgerdomain.LedgerEntry `json:"ledger_entries"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	PurchaseBoost(ctx context.Context, req PurchaseRequest) (PurchaseResponse, error)
	ConfirmBoostPayment(ctx context.Context, req ConfirmPaymentRequest) (BoostRecord, error)
	CancelBoost(ctx context.Context, req CancelRequest) (CancelResponse, error)
	GrantBoost(ctx context.Context, req GrantRequest) (BoostRecord, error)
	SetAutoRenew(ctx context.Context, req SetAutoRenewRequest) (BoostRecord, error)
	GetBoost(ctx context.Context, id string, actor authorization.Actor) (BoostDetail, error)
	ListActiveBoosts(ctx context.Context, req ListBoostsRequest) (ListBoostsResponse, error)
}

type RenewalOutcome string

const (
	RenewalOutcomeRenewed RenewalOutcome = "renewed"
	RenewalOutcomeFailed  RenewalOutcome = "failed"
	RenewalOutcomeSkipped RenewalOutcome = "skipped"
)

type RenewalResult struct {
	Outcome   RenewalOutcome
	Successor *BoostRecord
	// Reason carries the charge failure for failed outcomes.
	Reason error
}

// SweepService holds the per-record transitions driven by the scheduler.
// Each call runs in its own transaction and treats a lost race as a no-op (false, nil).
type SweepService interface {
	ExpireBoost(ctx context.Context, id snowflake.ID) (bool, error)
	ActivateScheduledBoost(ctx context.Context, id snowflake.ID) (bool, error)
	ExpireStalePendingBoost(ctx context.Context, id snowflake.ID) (bool, error)
	RenewBoost(ctx context.Context, id snowflake.ID) (RenewalResult, error)
	RefreshPerformance(ctx context.Context, id snowflake.ID) (bool, error)
	// SettleRefund pays out a refund recorded on a cancelled record but not yet credited.
	SettleRefund(ctx context.Context, id snowflake.ID) (bool, error)
}

// ExpiringBoost is reported to sellers ahead of expiry; never mutated by the sweep.
type ExpiringBoost struct {
	ID        snowflake.ID
	ListingID snowflake.ID
	SellerID  string
	Tier      Tier
	EndDate   time.Time
}
