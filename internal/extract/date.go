package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
	// Date-only inputs are stamped at midday
	defaultClock = "12:00:00"
)

const monthNames = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

// months maps full and three-letter month names, plus "sept"
var months = func() map[string]time.Month {
	m := map[string]time.Month{"sept": time.September}
	for mon := time.January; mon <= time.December; mon++ {
		name := strings.ToLower(mon.String())
		m[name] = mon
		m[name[:3]] = mon
	}
	return m
}()

var weekdays = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		m[strings.ToLower(d.String())] = d
	}
	return m
}()

// datePattern resolves one regex match to a calendar date relative to now
type datePattern struct {
	re      *regexp.Regexp
	resolve func(m []string, now time.Time) (time.Time, bool)
}

var absoluteDatePatterns = []datePattern{
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		resolve: func(m []string, _ time.Time) (time.Time, bool) {
			return civilDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(\d{1,2})\s+` + monthNames + `\.?,?\s+(\d{4})\b`),
		resolve: func(m []string, _ time.Time) (time.Time, bool) {
			return civilDate(atoi(m[3]), months[strings.ToLower(m[2])], atoi(m[1]))
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
		resolve: func(m []string, _ time.Time) (time.Time, bool) {
			return civilDate(atoi(m[3]), months[strings.ToLower(m[1])], atoi(m[2]))
		},
	},
	{
		// Day first, as the sources publish
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`),
		resolve: func(m []string, _ time.Time) (time.Time, bool) {
			return civilDate(atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]))
		},
	},
}

var relativeDatePatterns = []datePattern{
	{
		re: regexp.MustCompile(`(?i)\b(yesterday|last night|today|this morning|this afternoon|this evening|tonight)\b`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			switch strings.ToLower(m[1]) {
			case "yesterday", "last night":
				return now.AddDate(0, 0, -1), true
			default:
				return now, true
			}
		},
	},
	{
		re: regexp.MustCompile(`(?i)\bon\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:\s+(?:morning|afternoon|evening|night))?\b`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			// Most recent such weekday, today included
			back := (int(now.Weekday()) - int(weekdays[strings.ToLower(m[1])]) + 7) % 7
			return now.AddDate(0, 0, -back), true
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(early|mid|late)[\s-]+` + monthNames + `\b(?:\s+(\d{4}))?`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			day := map[string]int{"early": 5, "mid": 15, "late": 25}[strings.ToLower(m[1])]
			month := months[strings.ToLower(m[2])]
			if m[3] != "" {
				return civilDate(atoi(m[3]), month, day)
			}
			t, ok := civilDate(now.Year(), month, day)
			if ok && t.After(now) {
				t = t.AddDate(-1, 0, 0)
			}
			return t, ok
		},
	},
}

func datePatternsFor(mode Mode) []datePattern {
	patterns := append([]datePattern(nil), absoluteDatePatterns...)
	if mode == ModeEnhanced {
		patterns = append(patterns, relativeDatePatterns...)
	}
	return patterns
}

var defaultDatePatterns = datePatternsFor(ModeEnhanced)

// ExtractDate returns the first date found in text as YYYY-MM-DD, trying
// patterns in list order. Without a match it returns now's date.
func ExtractDate(text string, now time.Time) string {
	if d, ok := FindDate(text, now); ok {
		return d
	}
	return now.Format(dateLayout)
}

// FindDate is ExtractDate without the fallback to now
func FindDate(text string, now time.Time) (string, bool) {
	return matchDate(defaultDatePatterns, text, now)
}

func matchDate(patterns []datePattern, text string, now time.Time) (string, bool) {
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if t, ok := p.resolve(m, now); ok {
				return t.Format(dateLayout), true
			}
		}
	}
	return "", false
}

// civilDate rejects out-of-range components instead of normalizing them
func civilDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var dateTimeLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", true},
	{"2 January 2006", true},
	{"2 Jan 2006", true},
	{"January 2, 2006", true},
	{"Jan 2, 2006", true},
	{"2/1/2006", true},
	{"1/2/2006", true},
	{time.RFC1123Z, false},
	{time.RFC1123, false},
}

// ParseDateTime turns a published-date string into canonical date and time.
// Formats are tried in a fixed order; date-only formats yield 12:00:00. An
// unparseable value yields now with ok false.
func ParseDateTime(s string, now time.Time) (date, clock string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Format(dateLayout), now.Format(timeLayout), false
	}

	// ISO timestamps keep their wall clock; zone suffixes are ignored
	if len(s) >= 19 {
		if t, err := time.Parse("2006-01-02T15:04:05", s[:19]); err == nil {
			return t.Format(dateLayout), t.Format(timeLayout), true
		}
	}
	for _, l := range dateTimeLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.dateOnly {
			return t.Format(dateLayout), defaultClock, true
		}
		return t.Format(dateLayout), t.Format(timeLayout), true
	}

	return now.Format(dateLayout), now.Format(timeLayout), false
}
