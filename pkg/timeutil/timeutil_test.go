package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthStartDate_UsesClubZone(t *testing.T) {
	loc, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-06-30 20:00 UTC is already July 1st in Tokyo.
	utc := time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-07-01", MonthStartDate(utc, loc))
	assert.Equal(t, "2025-06-01", MonthStartDate(utc, time.UTC))
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 1, 15, 23, 30, 0, 0, time.UTC)
	c := FixedClock(at, nil)

	assert.Equal(t, "2025-01-16", c.Today())
	assert.Equal(t, "Asia/Tokyo", c.Location().String())
}

func TestLoadLocation_Unknown(t *testing.T) {
	_, err := LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(a, b))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-03", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Day())
	assert.Equal(t, 0, d.Hour())

	_, err = ParseDate("2025-13-01", nil)
	assert.Error(t, err)
}
