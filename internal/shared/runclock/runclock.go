// Package runclock provides the single injected clock source used across the
// core. Business logic never calls time.Now() directly; it receives a run
// timestamp so that PRNG seeding (Selector) and history timestamps (Store)
// stay deterministic and testable.
package runclock

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTimezone is used only for cron-style schedule display in the
	// serve command; all stored timestamps are UTC.
	DefaultTimezone = "UTC"
)

var (
	location     *time.Location
	locationOnce sync.Once
	initErr      error
)

// Init sets the timezone used for cron schedule display. Safe to call once;
// subsequent calls are no-ops other than propagating the first Init's result.
func Init(tz string) error {
	locationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		location, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// Location returns the configured timezone, auto-initializing to UTC if Init
// was never called.
func Location() *time.Location {
	if location == nil {
		_ = Init("")
	}
	return location
}

// NowUTC returns the current time in UTC. The only place in the module
// allowed to call time.Now() directly for run timestamps.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// DayOrdinal returns t's ordinal day within its year (1-366), used to seed
// the Selector's PRNG so probabilistic tier selection is stable within a
// day and changes the next day.
func DayOrdinal(t time.Time) int {
	return t.UTC().YearDay()
}

// FormatTimestamp formats a UTC time for storage in a state file.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp parses a timestamp previously written by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
