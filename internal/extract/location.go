package extract

import (
	"strings"
)

// DefaultRegion is used when no configured region is given
const DefaultRegion = "Gaza"

// Locations is the result of location extraction
type Locations struct {
	Primary   string
	Secondary []string
	// Matched is false when Primary is only the region default
	Matched bool
}

// Place is a gazetteer entry
type Place struct {
	Name    string
	Aliases []string
}

// Coordinate is a latitude/longitude pair
type Coordinate struct {
	Lat float64
	Lng float64
}

// Order matters: longer names precede the names they contain
var gazaPlaces = []Place{
	{Name: "Gaza City"},
	{Name: "Gaza"},
	{Name: "Rafah"},
	{Name: "Khan Younis", Aliases: []string{"Khan Yunis"}},
	{Name: "Deir al-Balah"},
	{Name: "Beit Hanoun"},
	{Name: "Beit Lahia"},
	{Name: "Jabalia", Aliases: []string{"Jabaliya"}},
	{Name: "Shejaiya"},
	{Name: "Zeitoun"},
	{Name: "Al-Maghazi"},
	{Name: "Al-Bureij"},
	{Name: "Nuseirat"},
	{Name: "Al-Zahra"},
	{Name: "Tal al-Hawa"},
}

var gazaCoordinates = map[string]Coordinate{
	"gaza city":   {31.5017, 34.4668},
	"khan younis": {31.3490, 34.3088},
	"rafah":       {31.2996, 34.2392},
	"jabalia":     {31.5317, 34.4833},
	"beit lahia":  {31.5453, 34.5042},
	"gaza strip":  {31.4167, 34.3333},
}

var regionCentroid = Coordinate{31.4167, 34.3333}

// Gazetteer matches a fixed list of place names by case-insensitive substring
type Gazetteer struct {
	region      string
	places      []Place
	coordinates map[string]Coordinate
	centroid    Coordinate
}

// NewGazetteer creates the gazetteer for a region. An empty region means DefaultRegion.
func NewGazetteer(region string) *Gazetteer {
	region = strings.TrimSpace(region)
	if region == "" {
		region = DefaultRegion
	}
	return &Gazetteer{
		region:      region,
		places:      gazaPlaces,
		coordinates: gazaCoordinates,
		centroid:    regionCentroid,
	}
}

// Region returns the default location name
func (g *Gazetteer) Region() string {
	return g.region
}

// Extract scans text for gazetteer names in list order. The first hit is
// primary, later hits are secondary. A name contained in an earlier hit
// ("Gaza" inside "Gaza City") only counts if it also appears on its own.
func (g *Gazetteer) Extract(text string) Locations {
	lower := strings.ToLower(text)
	var hits []string

	for _, place := range g.places {
		if g.mentions(lower, place, hits) {
			hits = append(hits, place.Name)
		}
	}

	if len(hits) == 0 {
		return Locations{Primary: g.region}
	}
	return Locations{Primary: hits[0], Secondary: hits[1:], Matched: true}
}

func (g *Gazetteer) mentions(lower string, place Place, earlier []string) bool {
	names := append([]string{place.Name}, place.Aliases...)
	for _, name := range names {
		needle := strings.ToLower(name)
		count := strings.Count(lower, needle)
		if count == 0 {
			continue
		}
		for _, hit := range earlier {
			h := strings.ToLower(hit)
			if strings.Contains(h, needle) {
				count -= strings.Count(lower, h)
			}
		}
		if count > 0 {
			return true
		}
	}
	return false
}

// Coordinates returns the coordinates of a place, or the region centroid
func (g *Gazetteer) Coordinates(name string) Coordinate {
	if c, ok := g.coordinates[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	for _, place := range g.places {
		for _, alias := range place.Aliases {
			if strings.EqualFold(alias, name) {
				if c, ok := g.coordinates[strings.ToLower(place.Name)]; ok {
					return c
				}
			}
		}
	}
	return g.centroid
}

// LocationTagger finds extra place names in text, e.g. with named-entity recognition
type LocationTagger interface {
	Locations(text string) []string
}

// NopTagger finds nothing; extraction then relies on the gazetteer alone
type NopTagger struct{}

// Locations implements LocationTagger
func (NopTagger) Locations(string) []string { return nil }
