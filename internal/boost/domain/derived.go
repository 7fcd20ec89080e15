package domain

import (
	"math"
	"time"
)

// IsActive reports whether the record is active and its window covers now.
func IsActive(record BoostRecord, now time.Time) bool {
	return record.Status == BoostStatusActive &&
		!now.Before(record.StartDate) &&
		now.Before(record.EndDate)
}

// DaysRemaining rounds the time left in the window up to whole days.
func DaysRemaining(record BoostRecord, now time.Time) int {
	if !now.Before(record.EndDate) {
		return 0
	}
	return int(math.Ceil(record.EndDate.Sub(now).Hours() / 24))
}

// UsedFraction is the elapsed share of the window, clamped to [0,1].
func UsedFraction(record BoostRecord, now time.Time) float64 {
	return UsedFractionOf(record.StartDate, record.EndDate, now)
}

func UsedFractionOf(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}
	used := now.Sub(start)
	switch {
	case used <= 0:
		return 0
	case used >= total:
		return 1
	}
	return float64(used) / float64(total)
}

// ROI compares revenue gained during the boost to its price, as a percentage.
// Returns 0 when the record has no price or no refreshed snapshot.
func ROI(record BoostRecord) float64 {
	if record.Price <= 0 || record.PerformanceRefreshedAt == nil {
		return 0
	}
	before := record.PerformanceBefore.Data()
	after := record.PerformanceAfter.Data()
	gained := after.Revenue - before.Revenue
	return float64(gained-record.Price) / float64(record.Price) * 100
}

// PerformanceDelta is the counter growth between the two snapshots.
func PerformanceDelta(record BoostRecord) PerformanceSnapshot {
	before := record.PerformanceBefore.Data()
	after := record.PerformanceAfter.Data()
	if record.PerformanceRefreshedAt == nil {
		return PerformanceSnapshot{}
	}
	return PerformanceSnapshot{
		Views:   after.Views - before.Views,
		Clicks:  after.Clicks - before.Clicks,
		Sales:   after.Sales - before.Sales,
		Revenue: after.Revenue - before.Revenue,
	}
}

// CanRenew reports whether the renewal budget still allows another period.
func CanRenew(record BoostRecord) bool {
	return record.AutoRenewEnabled &&
		(record.MaxRenewals == 0 || record.RenewalCount < record.MaxRenewals)
}
