// Package domain contains persistence models and contracts for boost records.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BoostStatus represents lifecycle states for a boost record.
type BoostStatus string

const (
	BoostStatusPending   BoostStatus = "pending"
	BoostStatusScheduled BoostStatus = "scheduled"
	BoostStatusActive    BoostStatus = "active"
	BoostStatusExpired   BoostStatus = "expired"
	BoostStatusCancelled BoostStatus = "cancelled"
)

// PaymentStatus tracks the money side of a boost record.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
	TierCustom  Tier = "custom"
)

type DurationUnit string

const (
	DurationUnitHour  DurationUnit = "hour"
	DurationUnitDay   DurationUnit = "day"
	DurationUnitWeek  DurationUnit = "week"
	DurationUnitMonth DurationUnit = "month"
)

const (
	CancelReasonPaymentTimeout = "payment_timeout"
	CancelReasonRequested      = "requested"
	CancelReasonSuperseded     = "superseded"
)

// PerformanceSnapshot holds listing counters captured around a boost window.
type PerformanceSnapshot struct {
	Views   int64 `json:"views"`
	Clicks  int64 `json:"clicks"`
	Sales   int64 `json:"sales"`
	Revenue int64 `json:"revenue"`
}

// BoostRecord is one paid (or granted) promotion period for a listing.
type BoostRecord struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ListingID snowflake.ID `json:"listing_id" gorm:"not null;index"`
	SellerID  string       `json:"seller_id" gorm:"type:text;not null;index"`

	Tier          Tier         `json:"tier" gorm:"type:text;not null"`
	DurationValue int          `json:"duration_value" gorm:"not null"`
	DurationUnit  DurationUnit `json:"duration_unit" gorm:"type:text;not null"`
	StartDate     time.Time    `json:"start_date" gorm:"not null"`
	EndDate       time.Time    `json:"end_date" gorm:"not null;index"`

	Price          int64         `json:"price" gorm:"not null"`
	Currency       string        `json:"currency" gorm:"type:text;not null"`
	PaymentMethod  string        `json:"payment_method" gorm:"type:text"`
	PaymentStatus  PaymentStatus `json:"payment_status" gorm:"type:text;not null"`
	TransactionRef *string       `json:"transaction_ref,omitempty" gorm:"type:text;index"`

	Status       BoostStatus `json:"status" gorm:"type:text;not null;index"`
	ActivatedAt  *time.Time  `json:"activated_at,omitempty"`
	CancelledAt  *time.Time  `json:"cancelled_at,omitempty"`
	CancelReason *string     `json:"cancel_reason,omitempty" gorm:"type:text"`
	RefundAmount int64       `json:"refund_amount" gorm:"not null;default:0"`

	AutoRenewEnabled bool          `json:"auto_renew_enabled" gorm:"not null;default:false"`
	NextRenewalDate  *time.Time    `json:"next_renewal_date,omitempty"`
	RenewalCount     int           `json:"renewal_count" gorm:"not null;default:0"`
	MaxRenewals      int           `json:"max_renewals" gorm:"not null;default:0"`
	RenewedFromID    *snowflake.ID `json:"renewed_from_id,omitempty" gorm:"index"`

	IsOverride bool `json:"is_override" gorm:"not null;default:false"`
	IsGrant    bool `json:"is_grant" gorm:"not null;default:false"`

	PerformanceBefore      datatypes.JSONType[PerformanceSnapshot] `json:"performance_before"`
	PerformanceAfter       datatypes.JSONType[PerformanceSnapshot] `json:"performance_after"`
	PerformanceRefreshedAt *time.Time                              `json:"performance_refreshed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (BoostRecord) TableName() string { return "boost_records" }

// Duration is the purchased window length.
type Duration struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// AddTo returns start advanced by the duration. Months use calendar arithmetic.
func (d Duration) AddTo(start time.Time) time.Time {
	switch d.Unit {
	case DurationUnitHour:
		return start.Add(time.Duration(d.Value) * time.Hour)
	case DurationUnitDay:
		return start.AddDate(0, 0, d.Value)
	case DurationUnitWeek:
		return start.AddDate(0, 0, 7*d.Value)
	case DurationUnitMonth:
		return start.AddDate(0, d.Value, 0)
	default:
		return start
	}
}

// maxDurationValue bounds every unit to about a century, the window of a permanent grant.
var maxDurationValue = map[DurationUnit]int{
	DurationUnitHour:  876600,
	DurationUnitDay:   36525,
	DurationUnitWeek:  5218,
	DurationUnitMonth: 1200,
}

func (d Duration) Validate() error {
	if d.Value <= 0 || !IsValidDurationUnit(d.Unit) {
		return ErrInvalidDuration
	}
	if d.Value > maxDurationValue[d.Unit] {
		return fmt.Errorf("%w: at most %d %s", ErrInvalidDuration, maxDurationValue[d.Unit], d.Unit)
	}
	return nil
}

// Window returns the end of a window opening at start. maxWindow caps its length when positive.
func (d Duration) Window(start time.Time, maxWindow time.Duration) (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}
	end := d.AddTo(start)
	if !end.After(start) {
		return time.Time{}, ErrInvalidDuration
	}
	if maxWindow > 0 && end.Sub(start) > maxWindow {
		return time.Time{}, fmt.Errorf("%w: window longer than %s", ErrInvalidDuration, maxWindow)
	}
	return end, nil
}

// DurationOf returns the purchased duration of a record.
func DurationOf(record BoostRecord) Duration {
	return Duration{Value: record.DurationValue, Unit: record.DurationUnit}
}

func IsValidTier(tier Tier) bool {
	switch tier {
	case TierDaily, TierWeekly, TierMonthly, TierCustom:
		return true
	default:
		return false
	}
}

func IsValidDurationUnit(unit DurationUnit) bool {
	switch unit {
	case DurationUnitHour, DurationUnitDay, DurationUnitWeek, DurationUnitMonth:
		return true
	default:
		return false
	}
}

func IsValidStatus(status BoostStatus) bool {
	switch status {
	case BoostStatusPending,
		BoostStatusScheduled,
		BoostStatusActive,
		BoostStatusExpired,
		BoostStatusCancelled:
		return true
	default:
		return false
	}
}
