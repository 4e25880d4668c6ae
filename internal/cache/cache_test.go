package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPageKey(t *testing.T) {
	key := PageKey("https://www.aljazeera.com/news/2024/1/15/strike")
	if !strings.HasPrefix(key, "crisislog:v1:") {
		t.Errorf("unexpected prefix: %s", key)
	}
	if key != PageKey("https://www.aljazeera.com/news/2024/1/15/strike") {
		t.Error("expected stable key")
	}
	if key == PageKey("https://www.aljazeera.com/news/2024/1/16/strike") {
		t.Error("expected distinct keys for distinct URLs")
	}
	if strings.Contains(fileName(key), ":") {
		t.Errorf("file name must not contain colons: %s", fileName(key))
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("expected miss")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	got, found := c.Get("k")
	if !found || string(got) != "v" {
		t.Errorf("expected hit with v, got %q %v", got, found)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("expected miss after delete")
	}
}

func TestDiskCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	key := PageKey("https://example.org/a")
	if err := c.Set(key, []byte("<html></html>"), 0); err != nil {
		t.Fatal(err)
	}
	if got, found := c.Get(key); !found || string(got) != "<html></html>" {
		t.Fatalf("expected hit, got %q %v", got, found)
	}

	now = now.Add(2 * time.Hour)
	if _, found := c.Get(key); found {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected expired file to be removed")
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("delete of missing entry should not fail: %v", err)
	}
}

func TestDiskCacheSharding(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := PageKey("https://example.org/a")
	if err := c.Set(key, []byte("page"), 0); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(dir, key[len(keyPrefix):len(keyPrefix)+2], fileName(key))
	if c.path(key) != want {
		t.Errorf("expected %s, got %s", want, c.path(key))
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected entry file: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(want))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := PageKey("https://example.org/broken")
	if err := c.Set(key, []byte("page"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path(key), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, found := c.Get(key); found {
		t.Error("expected corrupt entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected corrupt entry to be removed")
	}
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	if err := c.Set("k", []byte("page"), 0); err != nil {
		t.Fatal(err)
	}
	_ = c.memory.Clear()

	got, found := c.Get("k")
	if !found || string(got) != "page" {
		t.Fatalf("expected disk hit, got %q %v", got, found)
	}
	if _, found := c.memory.Get("k"); !found {
		t.Error("expected disk hit to be promoted to memory")
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get("k"); found {
		t.Error("expected miss after clear")
	}
}
