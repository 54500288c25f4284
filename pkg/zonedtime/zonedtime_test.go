package zonedtime

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalTimeAcceptsFullRange(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, minute := range []int{0, 30, 59} {
			raw := fmt.Sprintf("%d:%02d", hour, minute)
			parsed, err := ParseLocalTime(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, LocalTime{Hour: hour, Minute: minute}, parsed)
		}
	}

	parsed, err := ParseLocalTime("09:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", parsed.String())
	assert.Equal(t, 545, parsed.MinutesOfDay())
}

func TestParseLocalTimeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "24:00", "9:60", "9:5", "09-05", "123:00", "ab:cd"} {
		_, err := ParseLocalTime(raw)
		assert.True(t, errors.Is(err, ErrInvalidLocalTime), raw)
	}
}

func TestNormalizeTimezone(t *testing.T) {
	assert.Equal(t, "America/New_York", NormalizeTimezone("America/New_York"))
	assert.Equal(t, UTC, NormalizeTimezone("Not/AZone"))
	assert.Equal(t, UTC, NormalizeTimezone(""))
	assert.Equal(t, time.UTC.String(), Location("garbage").String())
}

func TestToInstantFollowsDaylightSaving(t *testing.T) {
	loc := Location("America/New_York")
	nine := LocalTime{Hour: 9}

	before := ToInstant(time.Date(2024, time.March, 8, 0, 0, 0, 0, loc), nine, loc)
	after := ToInstant(time.Date(2024, time.March, 11, 0, 0, 0, 0, loc), nine, loc)

	assert.Equal(t, time.Date(2024, time.March, 8, 14, 0, 0, 0, time.UTC), before)
	assert.Equal(t, time.Date(2024, time.March, 11, 13, 0, 0, 0, time.UTC), after)
}

func TestAddDaysKeepsMidnightAcrossTransition(t *testing.T) {
	loc := Location("America/New_York")
	start := StartOfDay(time.Date(2024, time.March, 9, 15, 0, 0, 0, time.UTC), loc)

	next := AddDays(start, 2)
	assert.Equal(t, "2024-03-11", DayKey(next, loc))
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 47*time.Hour, next.Sub(start))
}

func TestParseDateInZone(t *testing.T) {
	loc := Location("Asia/Jakarta")

	day, err := ParseDateInZone("2024-05-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 30, 17, 0, 0, 0, time.UTC), day.UTC())

	instant, err := ParseDateInZone("2024-05-01T10:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", DayKey(instant, loc))

	_, err = ParseDateInZone("May 1st", loc)
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 1, ISOWeekday(time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 7, ISOWeekday(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)))
}
