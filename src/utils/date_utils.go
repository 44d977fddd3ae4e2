package utils

import (
	"fmt"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// ParseInstant accepts an RFC3339 timestamp or a bare date, the latter being
// midnight UTC.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DefaultDateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}

// DisplayDate renders an instant the way the declaration report shows it.
func DisplayDate(t time.Time) string {
	return t.UTC().Format("02-Jan-2006 (15:04:05.000)")
}
