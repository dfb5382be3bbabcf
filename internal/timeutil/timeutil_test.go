package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jst(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadZone("")
	require.NoError(t, err)
	return loc
}

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, DefaultZone, loc.String())

	_, err = LoadZone("Not/AZone")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 10, d.Day())

	_, err = ParseDate("10/03/2025")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 30}, c)

	// Seconds are accepted, as some form widgets submit them.
	c, err = ParseClock("09:30:15")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 30, Second: 15}, c)

	for _, bad := range []string{"9", "24:00", "09:60", "ab:cd", "09:30:99", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestMerge(t *testing.T) {
	loc := jst(t)
	day, err := ParseDate("2025-03-10")
	require.NoError(t, err)

	got := Merge(day, Clock{Hour: 9, Minute: 30}, loc)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestMonthBounds(t *testing.T) {
	loc := jst(t)

	from, to := MonthBounds(2025, 3, loc)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, loc), to)

	// December rolls into the next year.
	from, to = MonthBounds(2025, 12, loc)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, loc), to)
}
