package model

import (
	"time"
)

// Incident is one structured record describing a single reported event or condition.
// It is immutable once assembled; the merger only decides whether it is inserted.
type Incident struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Date               string     `json:"date"` // YYYY-MM-DD, never empty
	Time               string     `json:"time"` // HH:MM:SS
	Location           string     `json:"location_name"`
	SecondaryLocations []string   `json:"secondary_locations,omitempty"`
	Latitude           float64    `json:"location_coordinates_lat"`
	Longitude          float64    `json:"location_coordinates_lng"`
	Type               string     `json:"type"`
	Description        string     `json:"description"`
	Casualties         Casualties `json:"casualties"`
	Evidence           Evidence   `json:"evidence"`
	Images             []Image    `json:"images,omitempty"`
	Sources            []string   `json:"sources"`
	SourceURL          string     `json:"source_url,omitempty"`
	Verified           Verified   `json:"verified"`
	Tags               []string   `json:"tags"`
	ExtractedAt        time.Time  `json:"extraction_timestamp"`
	LastUpdated        time.Time  `json:"last_updated"`

	CasualtyDetailsCount int      `json:"casualties_details_count"`
	CasualtyDetailsIDs   []string `json:"casualties_details_ids,omitempty"`
}

// Casualties holds per-category counts for an incident.
// Affected is a conservative upper bound: never below any other count.
type Casualties struct {
	Affected     int `json:"affected"`
	Critical     int `json:"critical"`
	Deaths       int `json:"deaths"`
	Injured      int `json:"injured"`
	Hospitalized int `json:"hospitalized"`
}

// Normalize enforces Affected >= max(Deaths, Injured, Hospitalized).
func (c Casualties) Normalize() Casualties {
	c.Affected = max(c.Affected, c.Deaths, c.Injured, c.Hospitalized)
	return c
}

// Verified is the tri-state verification status of an incident
type Verified string

const (
	VerifiedPending    Verified = "pending"
	VerifiedVerified   Verified = "verified"
	VerifiedUnverified Verified = "unverified"
)

// ParseVerified maps persisted values (including legacy booleans) to a status
func ParseVerified(s string) Verified {
	switch s {
	case string(VerifiedVerified), "true", "True":
		return VerifiedVerified
	case string(VerifiedUnverified), "false", "False":
		return VerifiedUnverified
	default:
		return VerifiedPending
	}
}

// Image is an image found in the article the incident was extracted from
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// ErrorRecord is the placeholder produced when a document could not be processed.
type ErrorRecord struct {
	URL         string `json:"url"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

// BatchStats summarises a multi-URL extraction.
type BatchStats struct {
	TotalURLs      int `json:"total_urls"`
	SuccessfulURLs int `json:"successful_urls"`
	FailedURLs     int `json:"failed_urls"`
	TotalIncidents int `json:"total_incidents"`
}

// BatchResult is the outcome of a batch: partial results plus a structured error list.
type BatchResult struct {
	Incidents []Incident    `json:"incidents"`
	Errors    []ErrorRecord `json:"errors"`
	Stats     BatchStats    `json:"stats"`
}
