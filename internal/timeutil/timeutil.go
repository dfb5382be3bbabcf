// Package timeutil anchors timestamps to the studio's reference time zone.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultZone is the reference zone all bookings are interpreted in.
const DefaultZone = "Asia/Tokyo"

// LoadZone resolves a zone name, falling back to DefaultZone when empty.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Clock is a time of day without a date.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses a time of day in HH:MM or HH:MM:SS form.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	var c Clock
	var err error
	if c.Hour, err = strconv.Atoi(parts[0]); err != nil || c.Hour < 0 || c.Hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	if c.Minute, err = strconv.Atoi(parts[1]); err != nil || c.Minute < 0 || c.Minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if c.Second, err = strconv.Atoi(parts[2]); err != nil || c.Second < 0 || c.Second > 59 {
			return Clock{}, fmt.Errorf("invalid second in %q", s)
		}
	}
	return c, nil
}

// Merge anchors a date and a time of day in the given zone.
func Merge(day time.Time, clock Clock, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour, clock.Minute, clock.Second, 0, loc)
}

// MonthBounds returns the half-open [start, end) interval covering a calendar
// month in the given zone.
func MonthBounds(year, month int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
