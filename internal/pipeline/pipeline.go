// Package pipeline turns free text, single URLs and URL lists into incidents.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/assemble"
	"github.com/ppiankov/crisislog/internal/cache"
	"github.com/ppiankov/crisislog/internal/extract"
	"github.com/ppiankov/crisislog/internal/locate"
	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/normalize"
	"github.com/ppiankov/crisislog/internal/segment"
	"github.com/ppiankov/crisislog/internal/worker"
)

// Deps are the optional collaborators of a Pipeline
type Deps struct {
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Clock stamps incidents; defaults to time.Now
	Clock func() time.Time
	// Fetcher overrides the one built from config
	Fetcher *Fetcher
}

// Pipeline orchestrates fetch, locate, extract and assemble
type Pipeline struct {
	fetcher   *Fetcher
	locator   *locate.Locator
	extractor *extract.Extractor
	assembler *assemble.Assembler
	config    *model.Config
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewPipeline creates a pipeline from cfg
func NewPipeline(cfg *model.Config, deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	mode := extract.ParseMode(cfg.Extraction.Mode)
	var tagger extract.LocationTagger
	if cfg.Extraction.UseNER {
		tagger = extract.NewProseTagger()
	}
	extractor := extract.New(extract.Options{
		Mode:   mode,
		Region: cfg.Extraction.Region,
		Tagger: tagger,
	})

	fetcher := deps.Fetcher
	if fetcher == nil {
		opts := []FetcherOption{WithFetchLogger(log), WithFetchMetrics(deps.Metrics)}
		if cfg.Cache.Enabled {
			opts = append(opts, WithCache(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL), cfg.Cache.DiskTTL))
		}
		fetcher = NewFetcher(cfg.HTTP, opts...)
	}

	return &Pipeline{
		fetcher:   fetcher,
		locator:   locate.New(locate.Options{Readability: mode == extract.ModeEnhanced}),
		extractor: extractor,
		assembler: assemble.New(assemble.Options{
			Extractor:  extractor,
			Prefix:     cfg.Extraction.IDPrefix,
			ArticleCap: cfg.Extraction.ArticleDescriptionCap,
			UnitCap:    cfg.Extraction.DigestDescriptionCap,
			Clock:      deps.Clock,
			Logger:     log,
		}),
		config:  cfg,
		metrics: deps.Metrics,
		log:     log,
	}
}

// Fetcher returns the pipeline's fetcher
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// ExtractText segments free text and builds one incident per qualifying unit
func (p *Pipeline) ExtractText(text string) []model.Incident {
	incidents := p.assembler.AssembleText(text, nil)
	p.observe(incidents)
	return incidents
}

// ExtractURL fetches one article and builds its incidents. The whole article
// is tried first; when it is rejected, each qualifying chunk becomes an
// incident instead. A fetch failure is returned as a *FetchError.
func (p *Pipeline) ExtractURL(ctx context.Context, rawURL string) ([]model.Incident, error) {
	article, err := p.fetchArticle(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	meta := &assemble.ArticleMeta{
		Title:         article.Title,
		PublishedDate: article.PublishedDate,
		SourceURL:     rawURL,
		Outlet:        article.Outlet,
		Credible:      article.Credible,
		Report:        article.Agency,
		Images:        article.Images,
	}

	var incidents []model.Incident
	if inc := p.assembler.Assemble(article.Body, meta); inc != nil {
		incidents = []model.Incident{*inc}
	} else {
		incidents = p.assembler.AssembleUnits(segment.Split(article.Body), meta)
	}

	p.log.Debug("extracted article",
		logger.String("url", rawURL),
		logger.String("title", article.Title),
		logger.Int("incidents", len(incidents)))
	p.observe(incidents)
	return incidents, nil
}

// ExtractDigest builds a single short record from the incident-relevant
// paragraphs of a page. Agency pages become verified reports; anything else
// is an unverified media report.
func (p *Pipeline) ExtractDigest(ctx context.Context, rawURL string) (*model.Incident, error) {
	article, err := p.fetchArticle(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	digest := segment.RelevantParagraphs(article.Body, extract.Keywords(), p.assemblerUnitCap())
	if digest == "" {
		return nil, nil
	}

	meta := &assemble.ArticleMeta{
		Title:         article.Title,
		PublishedDate: article.PublishedDate,
		SourceURL:     rawURL,
		Outlet:        article.Outlet,
		Credible:      article.Credible,
		Report:        article.Agency,
		Digest:        !article.Agency,
	}
	incidents := p.assembler.AssembleUnits([]string{digest}, meta)
	if len(incidents) == 0 {
		return nil, nil
	}
	p.observe(incidents)
	return &incidents[0], nil
}

// ExtractURLs runs a batch over urls with the configured politeness and
// concurrency. progress may be nil.
func (p *Pipeline) ExtractURLs(ctx context.Context, urls []string, progress *model.Progress) model.BatchResult {
	batch := worker.NewBatchProcessor(p, worker.BatchOptions{
		Workers:           p.config.Concurrency.Workers,
		Delay:             p.config.RateLimiting.Delay,
		RequestsPerSecond: p.config.RateLimiting.RequestsPerSecond,
		Burst:             p.config.RateLimiting.BurstSize,
		Robots:            p.fetcher,
		Describe:          NewErrorRecord,
		Logger:            p.log,
	})
	return batch.ProcessURLs(ctx, urls, progress)
}

func (p *Pipeline) fetchArticle(ctx context.Context, rawURL string) (locate.Article, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return locate.Article{}, fmt.Errorf("empty URL")
	}

	res, err := p.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return locate.Article{}, err
	}
	return p.locator.Locate(res.HTML, normalize.CleanURL(rawURL)), nil
}

func (p *Pipeline) assemblerUnitCap() int {
	if p.config.Extraction.DigestDescriptionCap > 0 {
		return p.config.Extraction.DigestDescriptionCap
	}
	return assemble.UnitCap
}

func (p *Pipeline) observe(incidents []model.Incident) {
	for _, inc := range incidents {
		p.metrics.ObserveIncident(inc.Type)
	}
}
