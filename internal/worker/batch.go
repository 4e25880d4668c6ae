package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/model"
)

// URLExtractor turns one URL into incidents
type URLExtractor interface {
	ExtractURL(ctx context.Context, url string) ([]model.Incident, error)
}

// CrawlDelayer reports a host's robots.txt crawl delay
type CrawlDelayer interface {
	CrawlDelay(ctx context.Context, url string) time.Duration
}

// ErrorDescriber converts a per-URL failure into its error record
type ErrorDescriber func(url string, err error) model.ErrorRecord

// urlOutcome is the result for one URL of a batch
type urlOutcome struct {
	index     int
	url       string
	incidents []model.Incident
	err       error
}

// BatchOptions configures a BatchProcessor
type BatchOptions struct {
	// Workers above 1 enables concurrent fetching with per-host limits
	Workers int
	// Delay is the minimum gap between requests (to the same host when concurrent)
	Delay time.Duration
	// RequestsPerSecond caps each host's rate in concurrent batches when it
	// is slower than Delay
	RequestsPerSecond float64
	Burst             int
	Robots            CrawlDelayer
	Describe          ErrorDescriber
	Logger            logger.Logger
}

// BatchProcessor runs a URL list through an extractor. One URL failing never
// aborts the batch; it becomes an entry in the error list.
type BatchProcessor struct {
	extractor URLExtractor
	workers   int
	delay     time.Duration
	robots    CrawlDelayer
	describe  ErrorDescriber
	limiter   *HostLimiter
	log       logger.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(extractor URLExtractor, opts BatchOptions) *BatchProcessor {
	b := &BatchProcessor{
		extractor: extractor,
		workers:   opts.Workers,
		delay:     opts.Delay,
		robots:    opts.Robots,
		describe:  opts.Describe,
		log:       opts.Logger,
	}
	if b.workers <= 0 {
		b.workers = 1
	}
	if b.describe == nil {
		b.describe = defaultDescribe
	}
	if b.log == nil {
		b.log = logger.NewNop()
	}
	b.limiter = NewHostLimiter(b.delay, opts.RequestsPerSecond, opts.Burst)
	return b
}

func defaultDescribe(url string, err error) model.ErrorRecord {
	return model.ErrorRecord{URL: url, Error: err.Error(), Description: "Failed to process URL: " + url}
}

// ProcessURLs extracts every URL and aggregates incidents in input order.
// progress may be nil.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string, progress *model.Progress) model.BatchResult {
	result := model.BatchResult{
		Incidents: []model.Incident{},
		Errors:    []model.ErrorRecord{},
		Stats:     model.BatchStats{TotalURLs: len(urls)},
	}
	if len(urls) == 0 {
		return result
	}
	if progress != nil {
		progress.Start(len(urls))
	}

	pool := NewPool(ctx, b.workers, func(o urlOutcome) {
		if o.err != nil {
			b.log.Warn("extraction failed", logger.String("url", o.url), logger.Error(o.err))
		} else {
			b.log.Info("extracted",
				logger.String("url", o.url),
				logger.Int("incidents", len(o.incidents)))
		}
		if progress != nil {
			progress.Advance(fmt.Sprintf("Processed %s", o.url))
		}
	})

	for i, u := range urls {
		if ctx.Err() != nil || !pool.Go(b.extractTask(i, u)) {
			break
		}
	}

	outcomes := make([]urlOutcome, 0, len(urls))
	done := make(map[int]bool, len(urls))
	for _, o := range pool.Wait() {
		done[o.index] = true
		outcomes = append(outcomes, o)
	}
	// cancellation leaves some URLs unsubmitted or unfinished
	for i, u := range urls {
		if !done[i] {
			outcomes = append(outcomes, urlOutcome{index: i, url: u, err: cancelCause(ctx)})
		}
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, b.describe(o.url, o.err))
			continue
		}
		result.Incidents = append(result.Incidents, o.incidents...)
	}

	result.Stats.FailedURLs = len(result.Errors)
	result.Stats.SuccessfulURLs = len(urls) - len(result.Errors)
	result.Stats.TotalIncidents = len(result.Incidents)
	return result
}

// extractTask waits for politeness clearance, then extracts url
func (b *BatchProcessor) extractTask(index int, url string) Task[urlOutcome] {
	return func(ctx context.Context) urlOutcome {
		if err := b.wait(ctx, url, index); err != nil {
			return urlOutcome{index: index, url: url, err: err}
		}
		incidents, err := b.extractor.ExtractURL(ctx, url)
		return urlOutcome{index: index, url: url, incidents: incidents, err: err}
	}
}

func cancelCause(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}
	return context.Canceled
}

// wait enforces politeness before request index. Sequential batches keep a
// fixed gap after the previous request finished; concurrent batches use the
// per-host limiter. A robots crawl delay longer than the configured delay wins.
func (b *BatchProcessor) wait(ctx context.Context, url string, index int) error {
	var crawlDelay time.Duration
	if b.robots != nil {
		crawlDelay = b.robots.CrawlDelay(ctx, url)
	}

	if b.workers == 1 {
		if index == 0 {
			return nil
		}
		return sleepContext(ctx, max(b.delay, crawlDelay))
	}

	b.limiter.Throttle(url, crawlDelay)
	return b.limiter.Wait(ctx, url)
}

// ProcessFile reads URLs from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, progress *model.Progress) (model.BatchResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls, progress), nil
}

// ReadURLsFromFile reads URLs from a file (one per line). Blank lines and
// lines starting with # are skipped; duplicates keep their first position.
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
