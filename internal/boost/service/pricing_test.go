package service

import (
	"math"
	"testing"

	"github.com/smallbiznis/boostd/internal/boost/domain"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	pricing := config.DefaultPricingConfig()

	cases := []struct {
		name     string
		tier     domain.Tier
		duration domain.Duration
		want     int64
	}{
		{"daily default", domain.TierDaily, domain.Duration{Value: 1, Unit: domain.DurationUnitDay}, 1000},
		{"daily three days", domain.TierDaily, domain.Duration{Value: 3, Unit: domain.DurationUnitDay}, 3000},
		{"weekly", domain.TierWeekly, domain.Duration{Value: 2, Unit: domain.DurationUnitWeek}, 10000},
		{"weekly priced in days", domain.TierWeekly, domain.Duration{Value: 3, Unit: domain.DurationUnitDay}, 2143},
		{"monthly", domain.TierMonthly, domain.Duration{Value: 1, Unit: domain.DurationUnitMonth}, 15000},
		{"custom hours", domain.TierCustom, domain.Duration{Value: 5, Unit: domain.DurationUnitHour}, 250},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := quote(pricing, tc.tier, tc.duration)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	delete(pricing.Tiers, "custom")
	_, err := quote(pricing, domain.TierCustom, domain.Duration{Value: 1, Unit: domain.DurationUnitDay})
	assert.ErrorIs(t, err, domain.ErrPricingUnavailable)
}

func TestResolveDuration(t *testing.T) {
	d, err := resolveDuration(domain.TierMonthly, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Duration{Value: 1, Unit: domain.DurationUnitMonth}, d)

	_, err = resolveDuration(domain.TierCustom, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = resolveDuration(domain.TierDaily, &domain.Duration{Value: 0, Unit: domain.DurationUnitDay})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = resolveDuration(domain.TierDaily, &domain.Duration{Value: 2, Unit: "fortnight"})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestQuote_RejectsOverflow(t *testing.T) {
	pricing := config.DefaultPricingConfig()
	pricing.Tiers["custom"] = config.TierPricing{UnitPrice: math.MaxInt64 / 2, Unit: "day"}

	_, err := quote(pricing, domain.TierCustom, domain.Duration{Value: 3, Unit: domain.DurationUnitDay})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = quote(pricing, domain.TierCustom, domain.Duration{Value: 3, Unit: domain.DurationUnitWeek})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	got, err := quote(pricing, domain.TierCustom, domain.Duration{Value: 2, Unit: domain.DurationUnitDay})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/2)*2, got)
}
