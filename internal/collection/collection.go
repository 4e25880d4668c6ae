// Package collection ties one extraction run to the persisted dataset:
// the daily report, the merge into the main collection and its backups.
package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/merge"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/store"
)

// Options configures a Collection
type Options struct {
	// Path is the main collection file; its extension picks the backend
	Path       string
	ReportsDir string
	BackupsDir string
	// Backup copies the collection before every merge
	Backup bool
	// TitleThreshold above zero drops incoming incidents whose title
	// duplicates an earlier one in the same run
	TitleThreshold float64

	Clock   func() time.Time
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Collection is the main incident dataset
type Collection struct {
	opts   Options
	merger *merge.Merger
	log    logger.Logger
}

// New creates a Collection
func New(opts Options) *Collection {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Collection{opts: opts, merger: merge.NewMerger(opts.Logger), log: opts.Logger}
}

// FromConfig creates a Collection from the output and extraction settings
func FromConfig(cfg *model.Config, m *metrics.Metrics, log logger.Logger) *Collection {
	return New(Options{
		Path:           cfg.Output.Collection,
		ReportsDir:     cfg.Output.ReportsDir,
		BackupsDir:     cfg.Output.BackupsDir,
		Backup:         cfg.Output.BackupEnabled,
		TitleThreshold: cfg.Extraction.TitleSimilarity,
		Metrics:        m,
		Logger:         log,
	})
}

// Path returns the main collection file
func (c *Collection) Path() string {
	return c.opts.Path
}

// Persist writes the run's daily report when it found anything and merges
// the incidents into the collection. It returns the report path and the
// number of incidents that were new.
func (c *Collection) Persist(ctx context.Context, result model.BatchResult) (string, int, error) {
	incidents := result.Incidents
	if c.opts.TitleThreshold > 0 {
		incidents = merge.DedupeByTitle(incidents, c.opts.TitleThreshold)
	}
	if len(incidents) == 0 {
		c.log.Info("no incidents to persist", logger.Int("errors", len(result.Errors)))
		return "", 0, nil
	}

	var report string
	if c.opts.ReportsDir != "" {
		var err error
		report, err = store.WriteReport(c.opts.ReportsDir, incidents, c.opts.Clock())
		if err != nil {
			return "", 0, err
		}
		c.log.Info("report written", logger.String("path", report), logger.Int("incidents", len(incidents)))
	}

	added, err := c.Merge(ctx, incidents)
	if err != nil {
		return report, 0, err
	}
	return report, added, nil
}

// Merge adds incidents whose ids are not yet in the collection
func (c *Collection) Merge(ctx context.Context, incidents []model.Incident) (int, error) {
	st, err := store.Open(ctx, c.opts.Path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := store.Close(st); cerr != nil {
			c.log.Warn("close collection", logger.Error(cerr))
		}
	}()

	if c.opts.Backup {
		if _, err := c.Backup(); err != nil {
			return 0, err
		}
	}

	added, err := c.merger.MergeInto(ctx, st, incidents)
	if err != nil {
		return 0, fmt.Errorf("merge into %s: %w", c.opts.Path, err)
	}
	c.opts.Metrics.ObserveMerged(added)
	return added, nil
}

// Load reads the whole collection
func (c *Collection) Load(ctx context.Context) ([]model.Incident, error) {
	st, err := store.Open(ctx, c.opts.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close(st) }()
	return st.Load(ctx)
}

// Backup copies the collection file into the backups directory. It returns
// "" without error when the collection does not exist yet.
func (c *Collection) Backup() (string, error) {
	path, err := store.Backup(c.opts.Path, c.opts.BackupsDir, c.opts.Clock())
	if err != nil {
		return "", err
	}
	if path != "" {
		c.log.Info("collection backed up", logger.String("path", path))
	}
	return path, nil
}
