package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	SellerID  string
	ListingID *snowflake.ID
	Status    BoostStatus
	Tier      Tier
	// After is the keyset cursor: rows strictly after (CreatedAt, ID) in descending order.
	AfterCreatedAt *time.Time
	AfterID        snowflake.ID
	Limit          int
}

type ActivateUpdate struct {
	ID              snowflake.ID
	From            BoostStatus
	StartDate       time.Time
	EndDate         time.Time
	PaymentMethod   string
	TransactionRef  *string
	NextRenewalDate *time.Time
	Before          PerformanceSnapshot
	IsOverride      bool
	Now             time.Time
}

type CancelUpdate struct {
	ID            snowflake.ID
	From          BoostStatus
	RefundAmount  int64
	PaymentStatus PaymentStatus
	Reason        string
	Now           time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *BoostRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BoostRecord, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID, skipLocked bool) (*BoostRecord, error)
	FindLiveByListing(ctx context.Context, db *gorm.DB, listingID snowflake.ID, now time.Time) ([]BoostRecord, error)
	FindCurrentByListing(ctx context.Context, db *gorm.DB, listingID snowflake.ID, now time.Time) ([]BoostRecord, error)
	FindPaidByListing(ctx context.Context, db *gorm.DB, listingID snowflake.ID) ([]BoostRecord, error)
	HasSuccessor(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	TransactionRefExists(ctx context.Context, db *gorm.DB, ref string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]BoostRecord, error)
	Stats(ctx context.Context, db *gorm.DB, filter ListFilter, now time.Time) (BoostStats, error)

	// Conditional writes. The bool result is false when the expected state no longer holds.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to BoostStatus, reason *string, now time.Time) (bool, error)
	Activate(ctx context.Context, db *gorm.DB, update ActivateUpdate) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, update CancelUpdate) (bool, error)
	MarkPaymentFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, method string, now time.Time) (bool, error)
	SetAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool, maxRenewals int, nextRenewal *time.Time, now time.Time) (bool, error)
	DisableAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	RecordRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedCount int, nextRenewal time.Time, now time.Time) (bool, error)
	UpdatePerformanceAfter(ctx context.Context, db *gorm.DB, id snowflake.ID, snapshot PerformanceSnapshot, now time.Time) (bool, error)
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)

	// Sweep selections, ordered and bounded by limit.
	ListExpiredIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
	ListExpiringSoon(ctx context.Context, db *gorm.DB, now, until time.Time, afterID snowflake.ID, limit int) ([]ExpiringBoost, error)
	ListRenewableIDs(ctx context.Context, db *gorm.DB, until time.Time, limit int) ([]snowflake.ID, error)
	ListScheduledDueIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
	ListStalePendingIDs(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]snowflake.ID, error)
	ListPerformanceDueIDs(ctx context.Context, db *gorm.DB, now, cutoff time.Time, limit int) ([]snowflake.ID, error)
	ListPendingRefundIDs(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error)
}
