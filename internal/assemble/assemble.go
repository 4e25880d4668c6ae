// Package assemble combines located content and extracted facts into
// incident records.
package assemble

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ppiankov/crisislog/internal/extract"
	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/normalize"
	"github.com/ppiankov/crisislog/internal/segment"
)

const (
	// DefaultPrefix namespaces incident ids
	DefaultPrefix = "gaza"
	// ArticleCap caps descriptions of whole-article incidents
	ArticleCap = 2000
	// UnitCap caps descriptions of per-chunk incidents
	UnitCap = 800

	maxTitleLen = 120
)

// Mode selects how many incidents one document produces
type Mode int

const (
	// ArticleMode yields one incident per article
	ArticleMode Mode = iota
	// UnitMode yields one incident per qualifying chunk
	UnitMode
)

// ArticleMeta is what is known about the document a unit came from. All fields are optional.
type ArticleMeta struct {
	Title         string
	PublishedDate string
	SourceURL     string
	Outlet        string
	Credible      bool
	Images        []model.Image
	// Report marks agency situation reports
	Report bool
	// Digest marks records built from news listings rather than full articles
	Digest bool
}

// Options configures an Assembler
type Options struct {
	Extractor  *extract.Extractor
	Prefix     string
	ArticleCap int
	UnitCap    int
	Logger     logger.Logger
	// Clock stamps extraction times; defaults to time.Now
	Clock func() time.Time
	// RunID seeds ids for text without a URL; defaults to a fresh ULID
	RunID string
}

// Assembler builds incidents. It is safe for concurrent use.
type Assembler struct {
	extractor  *extract.Extractor
	prefix     string
	articleCap int
	unitCap    int
	clock      func() time.Time
	runID      string
	seq        atomic.Int64
	log        logger.Logger
}

// New creates an assembler, filling unset options with defaults
func New(opts Options) *Assembler {
	a := &Assembler{
		extractor:  opts.Extractor,
		prefix:     opts.Prefix,
		articleCap: opts.ArticleCap,
		unitCap:    opts.UnitCap,
		clock:      opts.Clock,
		runID:      opts.RunID,
		log:        opts.Logger,
	}
	if a.extractor == nil {
		a.extractor = extract.New(extract.Options{})
	}
	if a.prefix == "" {
		a.prefix = DefaultPrefix
	}
	if a.articleCap <= 0 {
		a.articleCap = ArticleCap
	}
	if a.unitCap <= 0 {
		a.unitCap = UnitCap
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.runID == "" {
		a.runID = ulid.Make().String()
	}
	if a.log == nil {
		a.log = logger.NewNop()
	}
	return a
}

// Assemble builds one article-mode incident from unit. It returns nil when
// the unit is too short or mentions no incident keyword.
func (a *Assembler) Assemble(unit string, meta *ArticleMeta) *model.Incident {
	return a.build(unit, meta, ArticleMode, 0)
}

// AssembleUnits builds one unit-mode incident per qualifying unit
func (a *Assembler) AssembleUnits(units []string, meta *ArticleMeta) []model.Incident {
	var incidents []model.Incident
	for i, unit := range units {
		if inc := a.build(unit, meta, UnitMode, i); inc != nil {
			incidents = append(incidents, *inc)
		}
	}
	return incidents
}

// AssembleText segments free text and builds one incident per qualifying unit
func (a *Assembler) AssembleText(text string, meta *ArticleMeta) []model.Incident {
	return a.AssembleUnits(segment.Split(text), meta)
}

func (a *Assembler) build(unit string, meta *ArticleMeta, mode Mode, index int) *model.Incident {
	unit = normalize.Clean(unit)
	if len(unit) < segment.MinUnitLen || !extract.Relevant(unit) {
		return nil
	}
	if meta == nil {
		meta = &ArticleMeta{}
	}

	now := a.clock()
	sourceURL := normalize.CleanURL(meta.SourceURL)
	inc := &model.Incident{
		SourceURL:   sourceURL,
		ExtractedAt: now,
		LastUpdated: now,
		Images:      meta.Images,
	}

	inc.Title = safeField(a.log, "title", "", func() string {
		if mode == ArticleMode && strings.TrimSpace(meta.Title) != "" {
			return normalize.Sanitize(meta.Title)
		}
		return normalize.Truncate(normalize.Sanitize(firstSentence(unit)), maxTitleLen)
	})
	scanText := strings.TrimSpace(inc.Title + ". " + unit)

	type dateTime struct{ date, clock string }
	dt := safeField(a.log, "date", dateTime{now.Format("2006-01-02"), now.Format("15:04:05")}, func() dateTime {
		d, c := a.resolveDate(unit, meta, sourceURL, now)
		return dateTime{d, c}
	})
	inc.Date, inc.Time = dt.date, dt.clock

	region := a.extractor.Gazetteer().Region()
	locs := safeField(a.log, "location", extract.Locations{Primary: region}, func() extract.Locations {
		return a.extractor.Location(scanText)
	})
	inc.Location = locs.Primary
	inc.SecondaryLocations = locs.Secondary
	coord := a.extractor.Gazetteer().Coordinates(inc.Location)
	inc.Latitude, inc.Longitude = coord.Lat, coord.Lng

	inc.Type = safeField(a.log, "type", extract.DefaultType, func() string {
		return a.extractor.Classify(scanText)
	})
	inc.Tags = safeField(a.log, "tags", []string{extract.DefaultTag}, func() []string {
		return a.extractor.Tags(scanText)
	})
	inc.Casualties = safeField(a.log, "casualties", model.Casualties{}, func() model.Casualties {
		return a.extractor.Casualties(scanText)
	})

	inc.Description = safeField(a.log, "description", "", func() string {
		desc := normalize.Sanitize(unit)
		if mode == UnitMode {
			return normalize.TruncateEllipsis(desc, a.unitCap)
		}
		return normalize.Truncate(desc, a.articleCap)
	})

	inc.Sources = sources(meta, sourceURL)
	inc.Verified = verification(meta)
	inc.Evidence = evidence(inc, meta)
	inc.ID = a.id(sourceURL, inc.Date, index)

	return inc
}

// resolveDate picks the incident date from the most stable source available:
// the published date, a date inside the published string, the article path,
// the unit text and finally now. Only a parsed published date carries its own time.
func (a *Assembler) resolveDate(unit string, meta *ArticleMeta, sourceURL string, now time.Time) (string, string) {
	clock := now.Format("15:04:05")
	if published := strings.TrimSpace(meta.PublishedDate); published != "" {
		if d, c, ok := extract.ParseDateTime(published, now); ok {
			return d, c
		}
		if d, ok := extract.FindDate(published, now); ok {
			return d, clock
		}
	}
	if d, ok := DateFromURL(sourceURL); ok {
		return d, clock
	}
	if d, ok := a.extractor.FindDate(unit, now); ok {
		return d, clock
	}
	return now.Format("2006-01-02"), clock
}

// id derives the incident id from the source URL, or from a per-run sequence without one
func (a *Assembler) id(sourceURL, incidentDate string, index int) string {
	if sourceURL == "" {
		return IncidentID(a.prefix, incidentDate, seqKey(a.runID, a.seq.Add(1)))
	}
	return IncidentID(a.prefix, incidentDate, urlKey(sourceURL, incidentDate, index))
}

func sources(meta *ArticleMeta, sourceURL string) []string {
	if meta.Outlet != "" {
		return []string{meta.Outlet}
	}
	if host := normalize.RegistrableDomain(sourceURL); host != "" {
		return []string{host}
	}
	return []string{"Manual input"}
}

func verification(meta *ArticleMeta) model.Verified {
	switch {
	case meta.Digest:
		return model.VerifiedUnverified
	case meta.Credible:
		return model.VerifiedVerified
	default:
		return model.VerifiedPending
	}
}

func evidence(inc *model.Incident, meta *ArticleMeta) model.Evidence {
	var ev model.Evidence
	if inc.SourceURL != "" {
		kind := model.EvidenceKindArticle
		switch {
		case meta.Digest:
			kind = model.EvidenceKindMediaReport
		case meta.Report:
			kind = model.EvidenceKindReport
		}
		ev.Add(kind, inc.SourceURL, "Source: "+strings.Join(inc.Sources, ", "))
	}
	for _, img := range meta.Images {
		desc := img.Caption
		if desc == "" {
			desc = img.AltText
		}
		ev.Add(model.EvidenceKindImage, img.URL, desc)
	}
	return ev
}

var sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)

func firstSentence(unit string) string {
	if loc := sentenceEndRe.FindStringIndex(unit); loc != nil {
		return strings.TrimSpace(unit[:loc[0]+1])
	}
	return unit
}

// safeField runs one field extractor, substituting fallback if it panics
func safeField[T any](log logger.Logger, field string, fallback T, fn func() T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("field extraction failed",
				logger.String("field", field),
				logger.String("panic", fmt.Sprint(r)))
			v = fallback
		}
	}()
	return fn()
}
