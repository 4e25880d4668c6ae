package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per host, so concurrent workers never
// hit the same site faster than the politeness rate.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewHostLimiter allows each host one request per delay, or
// requestsPerSecond when that is slower. Zero for both disables limiting.
// A positive delay is a minimum gap between requests, so burst is then 1.
func NewHostLimiter(delay time.Duration, requestsPerSecond float64, burst int) *HostLimiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if requestsPerSecond > 0 && rate.Limit(requestsPerSecond) < limit {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 || delay > 0 {
		burst = 1
	}
	return &HostLimiter{
		hosts: make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// Wait blocks until rawURL's host may be requested again
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostKey(rawURL)
	if err != nil {
		return err
	}
	return l.bucket(host).Wait(ctx)
}

// Allow takes a token for rawURL's host without waiting
func (l *HostLimiter) Allow(rawURL string) bool {
	host, err := hostKey(rawURL)
	if err != nil {
		return false
	}
	return l.bucket(host).Allow()
}

// Throttle slows rawURL's host to one request per delay when that is
// slower than its current rate. Robots crawl delays come in through here.
func (l *HostLimiter) Throttle(rawURL string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	host, err := hostKey(rawURL)
	if err != nil {
		return
	}
	b := l.bucket(host)
	if every := rate.Every(delay); every < b.Limit() {
		b.SetLimit(every)
	}
}

func (l *HostLimiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.hosts[host]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.hosts[host] = b
	}
	return b
}

// hostKey is the lowercased host of rawURL, port included
func hostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.ToLower(parsed.Host), nil
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
