package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache keeps fetched pages across runs, one JSON file per key, fanned
// out into subdirectories so a long-running schedule does not pile
// thousands of files into one directory.
type DiskCache struct {
	dir   string
	ttl   time.Duration
	clock func() time.Time
}

// NewDiskCache creates a disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, clock: time.Now}
}

type diskEntry struct {
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

// Get returns a live entry. Expired and corrupt entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil || !c.clock().Before(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// Set stores a value; a zero ttl uses the cache default. The entry is
// written to a temp file and renamed so readers never see half a page.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.clock()
	raw, err := json.Marshal(diskEntry{StoredAt: now, ExpiresAt: now.Add(ttl), Data: value})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	_, werr := tmp.Write(raw)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", werr)
	}
	return nil
}

// Delete removes one entry; a missing entry is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes the cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path shards on the first two hex digits of the page hash
func (c *DiskCache) path(key string) string {
	name := fileName(key)
	shard := "00"
	if len(key) >= len(keyPrefix)+2 {
		shard = key[len(keyPrefix) : len(keyPrefix)+2]
	}
	return filepath.Join(c.dir, shard, name)
}
