package util

import (
	"strings"
	"time"
)

// ZeroDate is the placeholder ISS uses for "no date".
const ZeroDate = "0000-00-00"

const dateLayout = "2006-01-02"

// IsBlankDate reports whether s carries no date at all.
func IsBlankDate(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == ZeroDate
}

// ParseDate parses an exchange calendar date ("2006-01-02") or a full RFC3339
// timestamp. Anything else fails, including bare numbers and impossible dates
// such as 2025-02-30.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsBlankDate(s) {
		return time.Time{}, false
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// CalendarDaysBetween counts calendar-day boundaries from a to b, ignoring the
// time of day. Each value's date is read in its own location, so a civil
// date parsed as UTC midnight compares by its printed day.
func CalendarDaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
