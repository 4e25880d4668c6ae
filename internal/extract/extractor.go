// Package extract holds the heuristic fact extractors: date, location,
// casualty counts, incident type and topical tags. Every extractor is a pure
// function of its input text; "no match" is a normal outcome.
package extract

import (
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

// Mode selects the pattern set used by an Extractor
type Mode string

const (
	// ModeSimple uses absolute date formats and the general casualty patterns only
	ModeSimple Mode = "simple"
	// ModeEnhanced adds relative and vague dates, press casualty patterns and the location tagger
	ModeEnhanced Mode = "enhanced"
)

// ParseMode maps a config string to a Mode, defaulting to enhanced
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSimple)) {
		return ModeSimple
	}
	return ModeEnhanced
}

// Options configures an Extractor
type Options struct {
	Mode   Mode
	Region string
	// Tagger is consulted for extra locations in enhanced mode. nil means gazetteer only.
	Tagger LocationTagger
}

// Extractor runs the fact extractors with one pattern set
type Extractor struct {
	mode      Mode
	gazetteer *Gazetteer
	tagger    LocationTagger
	dates     []datePattern
	casualty  casualtyRules
}

// New creates an extractor for the given options
func New(opts Options) *Extractor {
	if opts.Mode == "" {
		opts.Mode = ModeEnhanced
	}
	tagger := opts.Tagger
	if tagger == nil || opts.Mode == ModeSimple {
		tagger = NopTagger{}
	}

	return &Extractor{
		mode:      opts.Mode,
		gazetteer: NewGazetteer(opts.Region),
		tagger:    tagger,
		dates:     datePatternsFor(opts.Mode),
		casualty:  casualtyRulesFor(opts.Mode),
	}
}

// Mode returns the active pattern set
func (e *Extractor) Mode() Mode {
	return e.mode
}

// Gazetteer returns the place list used for location matching
func (e *Extractor) Gazetteer() *Gazetteer {
	return e.gazetteer
}

// Date returns the first date found in text as YYYY-MM-DD, or now's date
func (e *Extractor) Date(text string, now time.Time) string {
	if d, ok := e.FindDate(text, now); ok {
		return d
	}
	return now.Format(dateLayout)
}

// FindDate returns the first date found in text, reporting whether there was one
func (e *Extractor) FindDate(text string, now time.Time) (string, bool) {
	return matchDate(e.dates, text, now)
}

// Location returns the primary and secondary locations mentioned in text
func (e *Extractor) Location(text string) Locations {
	locs := e.gazetteer.Extract(text)

	tagged := e.tagger.Locations(text)
	if len(tagged) == 0 {
		return locs
	}

	// Union with gazetteer hits; a default-only result is replaced by the first tagged place
	names := make([]string, 0, 1+len(locs.Secondary)+len(tagged))
	if locs.Matched {
		names = append(names, locs.Primary)
		names = append(names, locs.Secondary...)
	}
	names = append(names, tagged...)
	names = dedupeFold(names)
	if len(names) == 0 {
		return locs
	}

	return Locations{
		Primary:   names[0],
		Secondary: names[1:],
		Matched:   true,
	}
}

// Casualties returns the casualty counts reported in text
func (e *Extractor) Casualties(text string) model.Casualties {
	return e.casualty.extract(text)
}

// Classify returns the incident type for text
func (e *Extractor) Classify(text string) string {
	return Classify(text)
}

// Tags returns the topical tags for text
func (e *Extractor) Tags(text string) []string {
	return Tags(text)
}

// Relevant reports whether text mentions any incident keyword
func (e *Extractor) Relevant(text string) bool {
	return Relevant(text)
}

func dedupeFold(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
