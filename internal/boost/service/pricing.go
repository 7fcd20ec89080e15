package service

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/config"
)

var unitHours = map[domain.DurationUnit]int64{
	domain.DurationUnitHour:  1,
	domain.DurationUnitDay:   24,
	domain.DurationUnitWeek:  24 * 7,
	domain.DurationUnitMonth: 24 * 30,
}

var maxPrice = decimal.NewFromInt(math.MaxInt64)

// permanentGrant is the window used for grants without a duration.
var permanentGrant = domain.Duration{Value: 1200, Unit: domain.DurationUnitMonth}

func defaultDuration(tier domain.Tier) (domain.Duration, bool) {
	switch tier {
	case domain.TierDaily:
		return domain.Duration{Value: 1, Unit: domain.DurationUnitDay}, true
	case domain.TierWeekly:
		return domain.Duration{Value: 1, Unit: domain.DurationUnitWeek}, true
	case domain.TierMonthly:
		return domain.Duration{Value: 1, Unit: domain.DurationUnitMonth}, true
	default:
		return domain.Duration{}, false
	}
}

func resolveDuration(tier domain.Tier, requested *domain.Duration) (domain.Duration, error) {
	if requested == nil {
		duration, ok := defaultDuration(tier)
		if !ok {
			return domain.Duration{}, fmt.Errorf("%w: %s tier requires a duration", domain.ErrInvalidDuration, tier)
		}
		return duration, nil
	}
	if err := requested.Validate(); err != nil {
		return domain.Duration{}, err
	}
	return *requested, nil
}

// quote prices a duration against the tier table. Durations in a different unit
// than the tier are converted through hours (a month counts as 30 days) and rounded up.
func quote(pricing config.PricingConfig, tier domain.Tier, duration domain.Duration) (int64, error) {
	tierPrice, ok := pricing.Tiers[string(tier)]
	if !ok {
		return 0, fmt.Errorf("%w: tier %s", domain.ErrPricingUnavailable, tier)
	}
	unitPrice := decimal.NewFromInt(tierPrice.UnitPrice)
	value := decimal.NewFromInt(int64(duration.Value))

	var price decimal.Decimal
	unit := domain.DurationUnit(tierPrice.Unit)
	if unit == duration.Unit {
		price = unitPrice.Mul(value)
	} else {
		per, ok := unitHours[unit]
		if !ok {
			return 0, fmt.Errorf("%w: tier %s unit %s", domain.ErrPricingUnavailable, tier, unit)
		}
		price = unitPrice.
			Mul(value).
			Mul(decimal.NewFromInt(unitHours[duration.Unit])).
			Div(decimal.NewFromInt(per)).
			Ceil()
	}
	if price.GreaterThan(maxPrice) {
		return 0, fmt.Errorf("%w: price out of range", domain.ErrInvalidDuration)
	}
	return price.IntPart(), nil
}
