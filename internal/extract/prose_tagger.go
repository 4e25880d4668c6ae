package extract

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// ProseTagger tags geo-political entities with prose's named-entity model
type ProseTagger struct {
	// Labels accepted as locations; defaults to GPE
	Labels []string
}

// NewProseTagger creates a tagger that keeps GPE entities
func NewProseTagger() *ProseTagger {
	return &ProseTagger{Labels: []string{"GPE"}}
}

// Locations implements LocationTagger. Parse failures yield no locations.
func (t *ProseTagger) Locations(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}

	var names []string
	for _, ent := range doc.Entities() {
		if t.accepts(ent.Label) {
			names = append(names, strings.TrimSpace(ent.Text))
		}
	}
	return dedupeFold(names)
}

func (t *ProseTagger) accepts(label string) bool {
	labels := t.Labels
	if len(labels) == 0 {
		labels = []string{"GPE"}
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
