package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

// Headers is the column order of the incidents CSV. The dashboard reads these names.
var Headers = []string{
	"id", "title", "date", "time", "location_name",
	"location_coordinates_lat", "location_coordinates_lng",
	"type", "description", "casualties_affected", "casualties_critical",
	"casualties_deaths", "casualties_injured", "casualties_hospitalized",
	"evidence_types", "evidence_urls", "evidence_descriptions",
	"sources", "verified", "tags", "last_updated",
	"casualties_details_count", "casualties_details_ids",
}

// listSep joins multi-valued columns
const listSep = "|"

// CSVStore keeps the collection in a single CSV file with a header row
type CSVStore struct {
	path string
}

// NewCSV creates a CSV-backed store at path
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads every row. Columns are matched by header name, so extra or
// reordered columns in older files still load.
func (s *CSVStore) Load(_ context.Context) ([]model.Incident, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// Save rewrites the whole file
func (s *CSVStore) Save(_ context.Context, incidents []model.Incident) error {
	return writeAtomic(s.path, func(f *os.File) error {
		return WriteCSV(f, incidents)
	})
}

// ReadCSV decodes incidents from r
func ReadCSV(r io.Reader) ([]model.Incident, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var incidents []model.Incident
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return incidents, fmt.Errorf("read row %d: %w", len(incidents)+2, err)
		}
		row := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}
		incidents = append(incidents, fromRow(row))
	}
	return incidents, nil
}

// WriteCSV encodes incidents with the fixed header order
func WriteCSV(w io.Writer, incidents []model.Incident) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, inc := range incidents {
		if err := writer.Write(toRow(inc)); err != nil {
			return fmt.Errorf("write %s: %w", inc.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func toRow(inc model.Incident) []string {
	types := make([]string, len(inc.Evidence.Types))
	for i, t := range inc.Evidence.Types {
		types[i] = string(t)
	}
	lastUpdated := ""
	if !inc.LastUpdated.IsZero() {
		lastUpdated = inc.LastUpdated.Format(time.RFC3339)
	}

	return []string{
		inc.ID,
		inc.Title,
		inc.Date,
		inc.Time,
		inc.Location,
		formatFloat(inc.Latitude),
		formatFloat(inc.Longitude),
		inc.Type,
		inc.Description,
		strconv.Itoa(inc.Casualties.Affected),
		strconv.Itoa(inc.Casualties.Critical),
		strconv.Itoa(inc.Casualties.Deaths),
		strconv.Itoa(inc.Casualties.Injured),
		strconv.Itoa(inc.Casualties.Hospitalized),
		strings.Join(types, listSep),
		strings.Join(inc.Evidence.URLs, listSep),
		strings.Join(inc.Evidence.Descriptions, listSep),
		strings.Join(inc.Sources, listSep),
		string(inc.Verified),
		strings.Join(inc.Tags, listSep),
		lastUpdated,
		strconv.Itoa(inc.CasualtyDetailsCount),
		strings.Join(inc.CasualtyDetailsIDs, listSep),
	}
}

func fromRow(row func(string) string) model.Incident {
	inc := model.Incident{
		ID:          row("id"),
		Title:       row("title"),
		Date:        row("date"),
		Time:        row("time"),
		Location:    row("location_name"),
		Latitude:    parseFloat(row("location_coordinates_lat")),
		Longitude:   parseFloat(row("location_coordinates_lng")),
		Type:        row("type"),
		Description: row("description"),
		Casualties: model.Casualties{
			Affected:     parseInt(row("casualties_affected")),
			Critical:     parseInt(row("casualties_critical")),
			Deaths:       parseInt(row("casualties_deaths")),
			Injured:      parseInt(row("casualties_injured")),
			Hospitalized: parseInt(row("casualties_hospitalized")),
		},
		Sources:              splitList(row("sources")),
		Verified:             model.ParseVerified(row("verified")),
		Tags:                 splitList(row("tags")),
		CasualtyDetailsCount: parseInt(row("casualties_details_count")),
		CasualtyDetailsIDs:   splitList(row("casualties_details_ids")),
	}

	for _, t := range splitList(row("evidence_types")) {
		inc.Evidence.Types = append(inc.Evidence.Types, model.EvidenceKind(t))
	}
	inc.Evidence.URLs = splitList(row("evidence_urls"))
	inc.Evidence.Descriptions = splitList(row("evidence_descriptions"))
	if len(inc.Evidence.URLs) > 0 {
		inc.SourceURL = inc.Evidence.URLs[0]
	}

	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row("last_updated"))); err == nil {
		inc.LastUpdated = ts
	}
	return inc
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, listSep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// older files sometimes carry "12.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
