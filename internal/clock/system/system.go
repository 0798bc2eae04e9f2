// Package system provides the clocks used for history timestamps and token expiry.
package system

import "time"

// TimestampLayout renders times as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock reads the wall clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Tests use it to pin timestamps.
type Fixed time.Time

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}

// Timestamp formats t with TimestampLayout after converting to UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
