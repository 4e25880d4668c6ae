package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/crisislog/internal/model"
)

// Counts above this are treated as noise (ids, currency). Dates are
// filtered by context in isDatePart.
const maxCasualtyCount = 1_000_000

// Number followed by a keyword, with at most a few plain words between them.
// Filler excludes digits and punctuation so a match never crosses a clause.
const (
	num       = `\b(\d[\d,]*)`
	filler    = `\s+(?:[a-z'-]+\s+){0,4}?`
	qualifier = `\s+(?:at least |more than |over |nearly |about |some |around |up to )?`
)

type casualtyRules struct {
	journalist   []*regexp.Regexp
	deaths       []*regexp.Regexp
	injured      []*regexp.Regexp
	hospitalized []*regexp.Regexp
}

var (
	journalistPatterns = compileAll(
		num+`\s+(?:[a-z'-]+\s+){0,3}?(?:journalists?|reporters?|media workers|media personnel|al.?jazeera)\s+(?:[a-z'-]+\s+){0,6}?(?:killed|dead)\b`,
		`(?:journalists?|reporters?|media workers)\s+(?:[a-z'-]+\s+){0,2}?killed`+qualifier+`(\d[\d,]*)`,
	)

	deathPatterns = compileAll(
		num+filler+`(?:killed|dead|deaths?|died|fatalities)\b`,
		`\b(?:killed|killing|deaths?|fatalities)`+qualifier+`(\d[\d,]*)`,
		`\bdeath toll\s+(?:[a-z'-]+\s+){0,5}?(\d[\d,]*)`,
	)

	injuredPatterns = compileAll(
		num+filler+`(?:injured|wounded|hurt)\b`,
		`\b(?:injured|injuring|wounded|wounding)`+qualifier+`(\d[\d,]*)`,
	)

	hospitalizedPatterns = compileAll(
		num+filler+`(?:hospitali[sz]ed|admitted|taken to hospital)\b`,
		`\b(?:hospitali[sz]ed|admitted to hospital)`+qualifier+`(\d[\d,]*)`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

func casualtyRulesFor(mode Mode) casualtyRules {
	rules := casualtyRules{
		deaths:       deathPatterns,
		injured:      injuredPatterns,
		hospitalized: hospitalizedPatterns,
	}
	if mode == ModeEnhanced {
		rules.journalist = journalistPatterns
	}
	return rules
}

var defaultCasualtyRules = casualtyRulesFor(ModeEnhanced)

// ExtractCasualties returns the casualty counts reported in text using the enhanced pattern set
func ExtractCasualties(text string) model.Casualties {
	return defaultCasualtyRules.extract(text)
}

// extract takes the largest figure per category across every matching
// pattern, so several phrasings of one figure are not summed.
func (r casualtyRules) extract(text string) model.Casualties {
	var c model.Casualties
	if text == "" {
		return c
	}
	lower := strings.ToLower(text)

	c.Deaths = max(maxMatch(r.journalist, lower), maxMatch(r.deaths, lower))
	c.Injured = maxMatch(r.injured, lower)
	c.Hospitalized = maxMatch(r.hospitalized, lower)
	return c.Normalize()
}

func maxMatch(patterns []*regexp.Regexp, text string) int {
	best := 0
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if isDatePart(text, m[2], m[3]) {
				continue
			}
			if n, ok := parseCount(text[m[2]:m[3]]); ok && n > best {
				best = n
			}
		}
	}
	return best
}

var (
	monthWordRe = regexp.MustCompile(`^` + monthNames + `\.?$`)
	yearRe      = regexp.MustCompile(`^(?:19|20)\d{2}$`)
)

// isDatePart reports whether the number at text[start:end] is a day or a
// year: it sits next to a month name, or is a year after "in" or "since".
func isDatePart(text string, start, end int) bool {
	prev := lastWord(text[:start])
	next, after := firstWords(text[end:])

	if monthWordRe.MatchString(prev) {
		return true
	}
	// "may" after a number is usually the verb: "30 may have died"
	if monthWordRe.MatchString(next) && (next != "may" || after == "" || yearRe.MatchString(after)) {
		return true
	}
	return yearRe.MatchString(strings.TrimRight(text[start:end], ",")) && (prev == "in" || prev == "since")
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ",;:()")
}

// firstWords returns the first word of s and the one after it. A word ending
// in punctuation ends the phrase, so after is empty.
func firstWords(s string) (string, string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	first := fields[0]
	if trimmed := strings.TrimRight(first, ",;:.!?)"); trimmed != first || len(fields) == 1 {
		return trimmed, ""
	}
	return first, strings.TrimRight(fields[1], ",;:.!?)")
}

func parseCount(s string) (int, bool) {
	s = strings.Trim(strings.ReplaceAll(s, ",", ""), " ")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxCasualtyCount {
		return 0, false
	}
	return n, true
}
