package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_Window(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	end, err := Duration{Value: 2, Unit: DurationUnitMonth}.Window(start, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), end)

	end, err = Duration{Value: 1200, Unit: DurationUnitMonth}.Window(start, 0)
	require.NoError(t, err)
	assert.Equal(t, 2126, end.Year())

	for _, d := range []Duration{
		{Value: 3000000, Unit: DurationUnitHour},
		{Value: 7686143364045647, Unit: DurationUnitDay},
		{Value: 5219, Unit: DurationUnitWeek},
		{Value: 0, Unit: DurationUnitDay},
		{Value: 1, Unit: "year"},
	} {
		_, err := d.Window(start, 0)
		assert.ErrorIs(t, err, ErrInvalidDuration, "%d %s", d.Value, d.Unit)
	}

	_, err = Duration{Value: 2, Unit: DurationUnitDay}.Window(start, 24*time.Hour)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = Duration{Value: 1, Unit: DurationUnitDay}.Window(start, 24*time.Hour)
	assert.NoError(t, err)
}
