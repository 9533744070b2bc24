package clock

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format for subscription dates.
const DateLayout = "2006-01-02"

// Today returns the current calendar date of c in UTC.
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return Date(t), nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Date(t).Format(DateLayout)
}

// DaysBetween counts whole calendar days from a to b. A b earlier than a yields 0; an
// expired cycle has no remaining days rather than a negative count.
func DaysBetween(a, b time.Time) int {
	from, to := Date(a), Date(b)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// AddDays advances a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return Date(d).AddDate(0, 0, n)
}

// MaxDate returns the later of two calendar dates.
func MaxDate(a, b time.Time) time.Time {
	a, b = Date(a), Date(b)
	if b.After(a) {
		return b
	}
	return a
}
