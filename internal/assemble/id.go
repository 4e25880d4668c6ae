package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// Date segments in article paths, e.g. /news/2024/1/15/slug
var urlDateRe = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(\d{1,2})(?:/|$)`)

// IncidentID builds "prefix-YYYY-MM-DD-<16 hex>". The hex is the first
// 64 bits of SHA-256 over key, so ids are stable across re-extractions.
func IncidentID(prefix, date, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s-%s-%s", prefix, date, hex.EncodeToString(sum[:8]))
}

// urlKey is the hash input for an incident extracted from a URL
func urlKey(sourceURL, date string, index int) string {
	key := sourceURL + "|" + date
	if index > 0 {
		key += "|" + strconv.Itoa(index)
	}
	return key
}

// seqKey is the hash input for text without a URL
func seqKey(runID string, seq int64) string {
	return runID + "|" + strconv.FormatInt(seq, 10)
}

// DateFromURL returns the YYYY-MM-DD date embedded in an article path
func DateFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	m := urlDateRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
