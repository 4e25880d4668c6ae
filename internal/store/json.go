package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

// Envelope is the on-disk JSON layout
type Envelope struct {
	Incidents   []model.Incident `json:"incidents"`
	LastUpdated time.Time        `json:"last_updated"`
	TotalCount  int              `json:"total_count"`
}

// JSONStore keeps the collection in one JSON document
type JSONStore struct {
	path  string
	clock func() time.Time
}

// NewJSON creates a JSON-backed store. clock stamps last_updated on save.
func NewJSON(path string, clock func() time.Time) *JSONStore {
	if clock == nil {
		clock = time.Now
	}
	return &JSONStore{path: path, clock: clock}
}

// Load reads the envelope. A missing file is an empty collection.
func (s *JSONStore) Load(_ context.Context) ([]model.Incident, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return env.Incidents, nil
}

// Save rewrites the document with a fresh last_updated stamp
func (s *JSONStore) Save(_ context.Context, incidents []model.Incident) error {
	if incidents == nil {
		incidents = []model.Incident{}
	}
	env := Envelope{
		Incidents:   incidents,
		LastUpdated: s.clock().UTC(),
		TotalCount:  len(incidents),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	return writeAtomic(s.path, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}
