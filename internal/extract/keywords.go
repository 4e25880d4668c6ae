package extract

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// DefaultType is returned when no incident keyword is present
const DefaultType = "casualties"

// DefaultTag is the tag set used when no topical keyword is present
const DefaultTag = "general"

type category struct {
	name     string
	keywords []string
}

// Declaration order breaks classification ties
var taxonomy = []category{
	{"casualties", []string{"killed", "dead", "death", "died", "casualties", "fatalities", "strike", "attack", "bomb", "shell", "massacre"}},
	{"injuries", []string{"injured", "wounded", "injuries", "hurt", "amputation"}},
	{"infrastructure", []string{"destroyed", "damage", "building", "school", "bridge", "power plant", "demolished", "rubble"}},
	{"displacement", []string{"displaced", "evacuation", "evacuate", "fled", "refugee", "shelter", "tent"}},
	{"hunger", []string{"starvation", "malnutrition", "hunger", "food", "famine", "starving"}},
	{"water", []string{"water", "thirst", "dehydration", "sanitation", "desalination"}},
	{"aid", []string{"humanitarian", "relief", "supplies", "convoy", "aid"}},
	{"medical", []string{"hospital", "medical", "doctor", "nurse", "clinic", "medicine", "ambulance"}},
}

var tagTaxonomy = []category{
	{"children", []string{"child", "children", "kid", "baby", "infant"}},
	{"journalist", []string{"journalist", "reporter", "media", "press", "al jazeera"}},
	{"medical", []string{"doctor", "nurse", "medical", "health", "hospital"}},
	{"civilian", []string{"civilian", "resident", "family"}},
	{"airstrike", []string{"airstrike", "bombing", "bomb", "missile", "strike"}},
	{"artillery", []string{"artillery", "shell", "shelling"}},
	{"evacuation", []string{"evacuation", "flee", "escape", "displaced"}},
}

var (
	typeScorer = newKeywordScorer(taxonomy)
	tagScorer  = newKeywordScorer(tagTaxonomy)
)

// keywordScorer counts case-insensitive substring occurrences of each
// category's keywords in a single automaton pass.
type keywordScorer struct {
	// Matcher keeps per-call state and is not safe for concurrent use
	mu         sync.Mutex
	matcher    *ahocorasick.Matcher
	keywords   []string
	owners     [][]int
	categories []category
}

func newKeywordScorer(categories []category) *keywordScorer {
	s := &keywordScorer{categories: categories}
	index := make(map[string]int)

	for ci, cat := range categories {
		for _, kw := range cat.keywords {
			kw = strings.ToLower(kw)
			ki, ok := index[kw]
			if !ok {
				ki = len(s.keywords)
				index[kw] = ki
				s.keywords = append(s.keywords, kw)
				s.owners = append(s.owners, nil)
			}
			s.owners[ki] = append(s.owners[ki], ci)
		}
	}

	s.matcher = ahocorasick.NewStringMatcher(s.keywords)
	return s
}

// counts returns the occurrence count per category, in declaration order
func (s *keywordScorer) counts(text string) []int {
	counts := make([]int, len(s.categories))
	if text == "" {
		return counts
	}
	lower := strings.ToLower(text)

	s.mu.Lock()
	hits := s.matcher.Match([]byte(lower))
	s.mu.Unlock()

	seen := make(map[int]bool, len(hits))
	for _, ki := range hits {
		if ki < 0 || ki >= len(s.keywords) || seen[ki] {
			continue
		}
		seen[ki] = true
		n := strings.Count(lower, s.keywords[ki])
		for _, ci := range s.owners[ki] {
			counts[ci] += n
		}
	}
	return counts
}

// Classify returns the taxonomy category with the most keyword occurrences.
// Ties go to the earlier category; no occurrences yields DefaultType.
func Classify(text string) string {
	counts := typeScorer.counts(text)
	best, bestCount := -1, 0
	for i, n := range counts {
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return DefaultType
	}
	return taxonomy[best].name
}

// Tags returns every tag with at least one keyword hit, in declaration order
func Tags(text string) []string {
	counts := tagScorer.counts(text)
	var tags []string
	for i, n := range counts {
		if n > 0 {
			tags = append(tags, tagTaxonomy[i].name)
		}
	}
	if len(tags) == 0 {
		return []string{DefaultTag}
	}
	return tags
}

// Relevant reports whether text contains any incident-category keyword
func Relevant(text string) bool {
	for _, n := range typeScorer.counts(text) {
		if n > 0 {
			return true
		}
	}
	return false
}

// Categories lists the incident taxonomy in declaration order
func Categories() []string {
	names := make([]string, len(taxonomy))
	for i, c := range taxonomy {
		names[i] = c.name
	}
	return names
}

// Keywords lists every incident keyword once, in taxonomy order
func Keywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range taxonomy {
		for _, kw := range c.keywords {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}
