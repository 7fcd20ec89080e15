package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RecordRequest struct {
	Type      EntryType
	BoostID   snowflake.ID
	ListingID snowflake.ID
	SellerID  string
	// Amount is the magnitude in minor units; the sign is derived from Type.
	Amount     int64
	Currency   string
	SourceRef  string
	OccurredAt time.Time
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// Record appends an entry inside tx. A retried write of the same
	// (boost, type, source ref) returns the stored entry and inserted=false.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) (entry LedgerEntry, inserted bool, err error)
	ListByBoost(ctx context.Context, boostID snowflake.ID) ([]LedgerEntry, error)
}

var (
	ErrInvalidEntryType  = errors.New("invalid_entry_type")
	ErrInvalidBoost      = errors.New("invalid_boost")
	ErrInvalidListing    = errors.New("invalid_listing")
	ErrInvalidSeller     = errors.New("invalid_seller")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidSourceRef  = errors.New("invalid_source_ref")
	ErrInvalidOccurredAt = errors.New("invalid_occurred_at")
)
