package schedule

import (
	"context"
	"fmt"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/worker"
)

// Task names
const (
	ExtractionTask = "extraction"
	BackupTask     = "backup"
)

// BatchExtractor runs a URL batch
type BatchExtractor interface {
	ExtractURLs(ctx context.Context, urls []string, progress *model.Progress) model.BatchResult
}

// Persister stores a finished batch, returning the report path and the
// number of new incidents
type Persister interface {
	Persist(ctx context.Context, result model.BatchResult) (string, int, error)
}

// Backuper copies the collection aside
type Backuper interface {
	Backup() (string, error)
}

// Extraction reads the URL list, runs a batch and persists its incidents.
// A missing or empty URL list is logged and skipped.
func Extraction(extractor BatchExtractor, persister Persister, urlsFile string, log logger.Logger) Task {
	return func(ctx context.Context) error {
		urls, err := worker.ReadURLsFromFile(urlsFile)
		if err != nil {
			log.Warn("no URL list for scheduled extraction",
				logger.String("file", urlsFile),
				logger.Error(err))
			return nil
		}
		if len(urls) == 0 {
			log.Warn("URL list is empty", logger.String("file", urlsFile))
			return nil
		}

		result := extractor.ExtractURLs(ctx, urls, nil)
		report, added, err := persister.Persist(ctx, result)
		if err != nil {
			return fmt.Errorf("persist extraction: %w", err)
		}
		log.Info("scheduled extraction complete",
			logger.Int("urls", result.Stats.TotalURLs),
			logger.Int("failed", result.Stats.FailedURLs),
			logger.Int("incidents", result.Stats.TotalIncidents),
			logger.Int("added", added),
			logger.String("report", report))
		return nil
	}
}

// Backup copies the collection aside
func Backup(b Backuper) Task {
	return func(context.Context) error {
		_, err := b.Backup()
		return err
	}
}
