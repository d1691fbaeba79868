package domain

import (
	"fmt"
	"time"
)

// Clock supplies "now" to every component that reasons about day or week
// boundaries. Injected so tests can simulate rollovers.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the local calendar.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// ─── Calendar Helpers ───────────────────────────────────────────────────────
// The week starts on Monday. All boundaries are local-calendar midnights,
// which keeps DST transitions deterministic: a "day" is whatever the local
// calendar says it is.

// Today truncates t to local midnight.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	return Today(a).Equal(Today(b))
}

// StartOfWeek returns the most recent Monday (midnight) at or before t.
func StartOfWeek(t time.Time) time.Time {
	day := Today(t)
	// time.Weekday numbers Sunday as 0; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// EndOfWeek returns the Sunday (midnight) ending the week containing t.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 6)
}

// ISOWeek returns "YYYY-Www" for the given time.
func ISOWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DayKey formats a date as "2006-01-02" for per-day map keys.
func DayKey(t time.Time) string {
	return Today(t).Format("2006-01-02")
}
