package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

// stampLayout is the timestamp used in backup and report file names
const stampLayout = "20060102_150405"

// ReportPrefix names daily extraction reports
const ReportPrefix = "crisislog_extraction_"

// Backup copies path into dir as name_backup_YYYYMMDD_HHMMSS.ext and returns
// the new file. A missing source is not an error and yields "".
func Backup(path, dir string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)
	target := filepath.Join(dir, name+"_backup_"+now.Format(stampLayout)+ext)

	err = writeAtomic(target, func(f *os.File) error {
		_, err := io.Copy(f, src)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return target, nil
}

// ReportName returns the report file name for a run at now
func ReportName(now time.Time) string {
	return ReportPrefix + now.Format(stampLayout) + ".csv"
}

// WriteReport writes one run's incidents to a timestamped CSV in dir
func WriteReport(dir string, incidents []model.Incident, now time.Time) (string, error) {
	path := filepath.Join(dir, ReportName(now))
	err := writeAtomic(path, func(f *os.File) error {
		return WriteCSV(f, incidents)
	})
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
