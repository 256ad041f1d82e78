package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thebtf/remote/pkg/models"
)

var months = []struct {
	name  string
	month time.Month
}{
	{"january", time.January},
	{"february", time.February},
	{"march", time.March},
	{"april", time.April},
	{"may", time.May},
	{"june", time.June},
	{"july", time.July},
	{"august", time.August},
	{"september", time.September},
	{"october", time.October},
	{"november", time.November},
	{"december", time.December},
}

var monthDayPattern = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)

// ResolveDate converts a captured date token into a UTC calendar day.
// Supported forms: today/tomorrow/yesterday (relative to ref), ISO YYYY-MM-DD,
// and month name + day with an optional year (ref's year when absent).
// Impossible dates such as Feb 30 are rejected.
func ResolveDate(token string, ref time.Time) (time.Time, bool) {
	token = strings.ToLower(strings.Join(strings.Fields(token), " "))
	refDay := models.TruncateDay(ref)

	switch token {
	case "":
		return time.Time{}, false
	case "today":
		return refDay, true
	case "tomorrow":
		return refDay.AddDate(0, 0, 1), true
	case "yesterday":
		return refDay.AddDate(0, 0, -1), true
	}

	if t, err := time.Parse(time.DateOnly, token); err == nil {
		return t, true
	}

	m := monthDayPattern.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := lookupMonth(m[1])
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	year := refDay.Year()
	if m[3] != "" {
		if year, err = strconv.Atoi(m[3]); err != nil {
			return time.Time{}, false
		}
	}
	return civilDate(year, month, day)
}

// lookupMonth accepts full names and abbreviations of at least three letters ("sept", "Mar").
func lookupMonth(word string) (time.Month, bool) {
	if len(word) < 3 {
		return 0, false
	}
	for _, m := range months {
		if strings.HasPrefix(m.name, word) {
			return m.month, true
		}
	}
	return 0, false
}

// civilDate builds a UTC date, rejecting days that time.Date would roll into the next month.
func civilDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
