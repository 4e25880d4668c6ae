// Package merge reconciles newly assembled incidents with a persisted collection.
package merge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/model"
)

// DefaultTitleThreshold is the Jaccard similarity above which two titles are duplicates
const DefaultTitleThreshold = 0.7

// MergeByID appends incoming incidents whose id is not already known.
// Existing records are never modified; a colliding id drops the newcomer.
func MergeByID(existing, incoming []model.Incident) ([]model.Incident, int) {
	merged, _ := mergeByID(existing, incoming)
	return merged, len(merged) - len(existing)
}

func mergeByID(existing, incoming []model.Incident) ([]model.Incident, []string) {
	known := make(map[string]bool, len(existing)+len(incoming))
	for _, inc := range existing {
		known[inc.ID] = true
	}

	merged := make([]model.Incident, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	var dropped []string
	for _, inc := range incoming {
		if known[inc.ID] {
			dropped = append(dropped, inc.ID)
			continue
		}
		known[inc.ID] = true
		merged = append(merged, inc)
	}
	return merged, dropped
}

// DedupeByTitle keeps the first of any incidents whose titles are more than
// threshold similar. A threshold <= 0 means DefaultTitleThreshold.
func DedupeByTitle(incidents []model.Incident, threshold float64) []model.Incident {
	if threshold <= 0 {
		threshold = DefaultTitleThreshold
	}

	kept := make([]model.Incident, 0, len(incidents))
	keptWords := make([]map[string]bool, 0, len(incidents))

	for _, inc := range incidents {
		words := wordSet(inc.Title)
		duplicate := false
		for _, other := range keptWords {
			if jaccard(words, other) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, inc)
			keptWords = append(keptWords, words)
		}
	}
	return kept
}

// Jaccard returns |A∩B| / |A∪B| over the lowercased word sets of a and b.
// Two empty strings have similarity 0.
func Jaccard(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// Store is the persisted collection a Merger reads and rewrites
type Store interface {
	Load(ctx context.Context) ([]model.Incident, error)
	Save(ctx context.Context, incidents []model.Incident) error
}

// Merger serializes read-modify-write merges within one process.
// Separate processes writing the same collection are not coordinated.
type Merger struct {
	mu  sync.Mutex
	log logger.Logger
}

// NewMerger creates a merger. A nil logger discards output.
func NewMerger(log logger.Logger) *Merger {
	if log == nil {
		log = logger.NewNop()
	}
	return &Merger{log: log}
}

// MergeInto loads the collection, appends new ids and saves it when anything was added
func (m *Merger) MergeInto(ctx context.Context, store Store, incoming []model.Incident) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load collection: %w", err)
	}

	merged, dropped := mergeByID(existing, incoming)
	for _, id := range dropped {
		m.log.Debug("incident already present", logger.String("id", id))
	}

	added := len(merged) - len(existing)
	if added == 0 {
		return 0, nil
	}

	if err := store.Save(ctx, merged); err != nil {
		return 0, fmt.Errorf("save collection: %w", err)
	}

	m.log.Info("merged incidents",
		logger.Int("added", added),
		logger.Int("skipped", len(dropped)),
		logger.Int("total", len(merged)))
	return added, nil
}
