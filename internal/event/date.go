package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// deadlineLabel matches the "Deadline:" prefix that the page and our feed descriptions use
var deadlineLabel = regexp.MustCompile(`(?i)deadline:`)

// deadlineLayouts are tried in order against the whole trimmed string.
// Day-first layouts come before the ISO ones.
var deadlineLayouts = []string{
	"2 Jan 2006 15:04",     // "31 Dec 2026 23:59"
	"2 Jan 2006 15:4",      // "5 Dec 2026 9:5"
	"2 January 2006 15:04", // "31 December 2026 23:59"
	"2 January 2006 15:4",  // "5 December 2026 9:5"
	"2006-01-02 15:04:05",  // "2026-12-31 23:59:00"
	"2006-1-2 15:4:5",      // "2026-1-5 9:0:0"
	"2006-01-02",           // "2026-12-31"
	"2006-1-2",             // "2026-1-5"
	"2/1/2006",             // "31/12/2026"
	"2.1.2006",             // "31.12.2026"
}

var monthAbbrev = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// deadlinePattern extracts a date embedded in free text
type deadlinePattern struct {
	re    *regexp.Regexp
	build func(m []string) (year int, month time.Month, day int)
}

var deadlinePatterns = []deadlinePattern{
	{
		// "31 Dec 2026", "1 september 2026 17:00"
		re: regexp.MustCompile(`(?i)(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{4})(?:\s+(\d{1,2}):(\d{2}))?`),
		build: func(m []string) (int, time.Month, int) {
			return atoi(m[3]), monthAbbrev[strings.ToLower(m[2])[:3]], atoi(m[1])
		},
	},
	{
		// "2026-12-31", "2026-1-5 09:00"
		re: regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})(?:\s+(\d{1,2}):(\d{2}))?`),
		build: func(m []string) (int, time.Month, int) {
			return atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])
		},
	},
}

// ParseDeadline parses free-form deadline text into an absolute time.
// Returns false if no layout or pattern matches.
func ParseDeadline(text string) (time.Time, bool) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, false
	}

	if loc := deadlineLabel.FindAllStringIndex(text, -1); len(loc) > 0 {
		text = text[loc[len(loc)-1][1]:]
	}
	text = strings.TrimSpace(text)

	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t, true
		}
	}

	for _, p := range deadlinePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, month, day := p.build(m)

		// No time given means end of day
		hour, minute := 23, 59
		if m[4] != "" {
			hour, minute = atoi(m[4]), atoi(m[5])
		}

		if t, ok := validDate(year, month, day, hour, minute); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// IsExpired reports whether now is past the deadline plus the grace buffer.
// Returns false if the deadline cannot be parsed.
func IsExpired(text string, buffer time.Duration, now time.Time) bool {
	deadline, ok := ParseDeadline(text)
	if !ok {
		return false
	}
	return now.After(deadline.Add(buffer))
}

// validDate builds a local time and rejects values time.Date would normalize (e.g. 31 Feb)
func validDate(year int, month time.Month, day, hour, minute int) (time.Time, bool) {
	if month < time.January || month > time.December || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
