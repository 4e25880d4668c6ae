package pipeline

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/crisislog/internal/cache"
	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/util"
)

const maxRedirects = 5

// fetchSleepFunc waits between retry attempts; tests replace it
var fetchSleepFunc = sleepContext

// FetchErrorKind classifies why a fetch failed
type FetchErrorKind string

const (
	KindTimeout    FetchErrorKind = "timeout"
	KindHTTP       FetchErrorKind = "http"
	KindConnection FetchErrorKind = "connection"
	KindRobots     FetchErrorKind = "robots"
	KindRequest    FetchErrorKind = "request"
	KindBody       FetchErrorKind = "body"
)

// FetchError is the typed failure returned by the fetcher
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("unexpected status: %s", e.Status)
	case KindRobots:
		return "disallowed by robots.txt"
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the request ran out of time
func (e *FetchError) IsTimeout() bool {
	return e.Kind == KindTimeout
}

// Retryable reports whether another attempt may succeed: timeouts,
// connection failures, 429 and 5xx.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindHTTP:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// isRetryableFetchError reports whether err is a FetchError worth retrying
func isRetryableFetchError(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Retryable()
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML        string
	FinalURL    string
	StatusCode  int
	ContentType string
	FromCache   bool
}

// cachedPage is the cache encoding of a FetchResult
type cachedPage struct {
	HTML     string `json:"html"`
	FinalURL string `json:"final_url"`
}

// Fetcher retrieves pages with a browser-like identity, bounded retries,
// an optional page cache and optional robots.txt compliance.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int

	robots   *util.RobotsChecker
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      logger.Logger
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithCache serves repeated URLs from c for ttl
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithFetchMetrics records fetch outcomes
func WithFetchMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithFetchLogger sets the logger
func WithFetchLogger(log logger.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher creates a Fetcher from the HTTP configuration
func NewFetcher(cfg model.HTTPConfig, opts ...FetcherOption) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for broken mirrors
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = model.DefaultUserAgent
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 5_000_000
	}

	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		maxRetries: maxRetries,
		log:        logger.NewNop(),
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(f.httpClient, userAgent, cfg.Timeout)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves one page with a single attempt
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, &FetchError{URL: rawURL, Kind: KindRobots}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindRequest, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: transportKind(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: rawURL, Kind: KindHTTP, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		kind := KindBody
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &FetchError{URL: rawURL, Kind: kind, Err: err}
	}

	return &FetchResult{
		HTML:        string(body),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// FetchWithRetry serves from cache when possible, otherwise fetches with up
// to maxRetries attempts and linear backoff on transient failures.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.PageKey(rawURL)
	if f.cache != nil {
		if raw, ok := f.cache.Get(key); ok {
			var page cachedPage
			if err := json.Unmarshal(raw, &page); err == nil {
				f.metrics.ObserveCacheHit()
				return &FetchResult{HTML: page.HTML, FinalURL: page.FinalURL, StatusCode: http.StatusOK, FromCache: true}, nil
			}
		}
	}

	start := time.Now()
	var result *FetchResult
	var err error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		result, err = f.Fetch(ctx, rawURL)
		if err == nil || !isRetryableFetchError(err) || attempt == f.maxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}
		backoff := time.Duration(attempt) * time.Second
		f.log.Debug("retrying fetch",
			logger.String("url", rawURL),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", backoff),
			logger.Error(err))
		if fetchSleepFunc(ctx, backoff) != nil {
			break
		}
	}

	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			f.metrics.ObserveFetchFailure(string(fe.Kind))
		}
		return nil, err
	}

	f.metrics.ObserveFetch(hostOf(rawURL), time.Since(start))
	if f.cache != nil {
		if raw, merr := json.Marshal(cachedPage{HTML: result.HTML, FinalURL: result.FinalURL}); merr == nil {
			if cerr := f.cache.Set(key, raw, f.cacheTTL); cerr != nil {
				f.log.Warn("cache write failed", logger.String("url", rawURL), logger.Error(cerr))
			}
		}
	}
	return result, nil
}

// CrawlDelay returns the robots.txt crawl delay for the URL's host, zero
// when robots.txt is not consulted.
func (f *Fetcher) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	if f.robots == nil {
		return 0
	}
	return f.robots.CrawlDelay(ctx, rawURL)
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func transportKind(err error) FetchErrorKind {
	if isTimeout(err) {
		return KindTimeout
	}
	return KindConnection
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
