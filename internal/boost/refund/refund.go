// Package refund computes early-cancellation refunds for boost records.
package refund

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/boostd/internal/boost/domain"
)

// Tier is one step of the refund schedule: a used fraction strictly below
// Below refunds Rate of the price.
type Tier struct {
	Below decimal.Decimal
	Rate  decimal.Decimal
}

var schedule = []Tier{
	{Below: decimal.RequireFromString("0.10"), Rate: decimal.RequireFromString("0.90")},
	{Below: decimal.RequireFromString("0.30"), Rate: decimal.RequireFromString("0.50")},
}

// Schedule returns a copy of the refund tiers, ordered by threshold.
func Schedule() []Tier {
	out := make([]Tier, len(schedule))
	copy(out, schedule)
	return out
}

// UsedFraction is the elapsed share of [start, end) at now, clamped to [0,1].
func UsedFraction(start, end, now time.Time) decimal.Decimal {
	total := end.Sub(start)
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	used := now.Sub(start)
	switch {
	case used <= 0:
		return decimal.Zero
	case used >= total:
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(used)).Div(decimal.NewFromInt(int64(total)))
}

// Rate is the refundable share of the price at now.
func Rate(start, end, now time.Time) decimal.Decimal {
	if !now.Before(end) {
		return decimal.Zero
	}
	used := UsedFraction(start, end, now)
	for _, tier := range schedule {
		if used.LessThan(tier.Below) {
			return tier.Rate
		}
	}
	return decimal.Zero
}

// Calculate returns the refund in minor units, rounded down so it never exceeds price.
func Calculate(price int64, start, end, now time.Time) int64 {
	if price <= 0 {
		return 0
	}
	amount := decimal.NewFromInt(price).Mul(Rate(start, end, now)).Floor().IntPart()
	if amount > price {
		return price
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// CalculateForRecord is Calculate over a record's window. Unpaid records refund nothing.
func CalculateForRecord(record domain.BoostRecord, now time.Time) int64 {
	if record.PaymentStatus != domain.PaymentStatusCompleted {
		return 0
	}
	return Calculate(record.Price, record.StartDate, record.EndDate, now)
}
