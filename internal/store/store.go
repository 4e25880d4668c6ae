// Package store persists the incident collection as CSV, JSON or SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

// ErrUnsupportedFormat is returned by Open for unknown file extensions
var ErrUnsupportedFormat = errors.New("unsupported collection format")

// Store is a persisted incident collection.
// Load on a collection that does not exist yet returns no incidents and no error.
type Store interface {
	Load(ctx context.Context) ([]model.Incident, error)
	Save(ctx context.Context, incidents []model.Incident) error
}

// Open picks a backend from the file extension of path
func Open(ctx context.Context, path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSV(path), nil
	case ".json":
		return NewJSON(path, time.Now), nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Close releases backend resources for stores that hold any
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// writeAtomic writes through a temp file in the target directory and renames it into place
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
