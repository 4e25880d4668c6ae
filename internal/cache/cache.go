// Package cache keeps fetched pages so repeated runs over the same URLs do
// not hit the origin again within the TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix versions cache entries; bump it when the stored page format changes
const keyPrefix = "crisislog:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey generates a cache key from a page URL
func PageKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// fileName maps a key to a name that is valid on every filesystem
func fileName(key string) string {
	return strings.ReplaceAll(key, ":", "_") + ".cache"
}
