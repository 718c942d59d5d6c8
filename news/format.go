package news

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders date relative to now: 今天, 昨天, N天前 within a week
// and YYYY/MM/DD beyond. Day counts round the absolute distance up, so
// anything within the last 24 hours is 今天. Unparsable input is returned as is.
func FormatDate(date string, now time.Time) string {
	t, ok := parseDate(date, now.Location())
	if !ok {
		return date
	}
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))
	switch {
	case days <= 1:
		return "今天"
	case days == 2:
		return "昨天"
	case days <= 7:
		return strconv.Itoa(days-1) + "天前"
	default:
		return t.Format("2006/01/02")
	}
}

// Truncate cuts text to n runes and appends "..." when anything was dropped.
func Truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
