package tool

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ResolveDate converts relative date words to YYYY-MM-DD; anything else
// passes through unchanged.
func ResolveDate(value string, now time.Time) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "TODAY":
		return now.Format(dateLayout)
	case "TOMORROW":
		return now.AddDate(0, 0, 1).Format(dateLayout)
	case "YESTERDAY":
		return now.AddDate(0, 0, -1).Format(dateLayout)
	}
	return value
}

// dateRange fills missing bounds with today..today+defaultDays.
func dateRange(start, end string, defaultDays int, now time.Time) (string, string) {
	if start == "" {
		start = now.Format(dateLayout)
	} else {
		start = ResolveDate(start, now)
	}
	if end == "" {
		end = now.AddDate(0, 0, defaultDays).Format(dateLayout)
	} else {
		end = ResolveDate(end, now)
	}
	return start, end
}
