package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/crisislog/internal/cache"
	"github.com/ppiankov/crisislog/internal/model"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		MaxRetries:   3,
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { fetchSleepFunc = origSleep })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected configured User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig())
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.HTML != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if result.ContentType != "text/html" {
		t.Errorf("Unexpected content type: %s", result.ContentType)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(testHTTPConfig())
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if result.HTML != "<html>OK</html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(testHTTPConfig())
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	// 404 is not retryable, so should fail immediately
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
	if got := err.Error(); got != "unexpected status: 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindHTTP || fe.StatusCode != http.StatusNotFound {
		t.Errorf("Expected http FetchError, got %#v", err)
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(testHTTPConfig())
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_CancelledDuringBackoff(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	fetcher := NewFetcher(testHTTPConfig())
	start := time.Now()
	_, err := fetcher.FetchWithRetry(ctx, server.URL)
	if err == nil {
		t.Fatal("Expected error from failing server")
	}
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Errorf("Expected backoff to end with the context, took %v", elapsed)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts.Load())
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil after full sleep, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(testHTTPConfig())
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if result.HTML != "<html>OK</html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testHTTPConfig()
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewFetcher(cfg).Fetch(context.Background(), server.URL)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if !fe.IsTimeout() {
		t.Errorf("Expected timeout kind, got %s", fe.Kind)
	}
	if !fe.Retryable() {
		t.Error("Expected timeouts to be retryable")
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewFetcher(testHTTPConfig()).Fetch(context.Background(), addr)

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindConnection {
		t.Errorf("Expected connection FetchError, got %v", err)
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.RespectRobots = true
	fetcher := NewFetcher(cfg)

	_, err := fetcher.Fetch(context.Background(), server.URL+"/private/page")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindRobots {
		t.Errorf("Expected robots FetchError, got %v", err)
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/news/page"); err != nil {
		t.Errorf("Expected allowed path to fetch, got %v", err)
	}
}

func TestFetchWithRetry_Cache(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = fmt.Fprint(w, "<html>cached</html>")
	}))
	defer server.Close()

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	fetcher := NewFetcher(testHTTPConfig(), WithCache(c, time.Minute))

	first, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}

	if attempts.Load() != 1 {
		t.Errorf("Expected one origin request, got %d", attempts.Load())
	}
	if first.FromCache || !second.FromCache {
		t.Errorf("Expected second fetch from cache: first=%v second=%v", first.FromCache, second.FromCache)
	}
	if second.HTML != first.HTML {
		t.Errorf("Cached HTML differs: %q", second.HTML)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &FetchError{Kind: KindHTTP, StatusCode: 503}, true},
		{"500", &FetchError{Kind: KindHTTP, StatusCode: 500}, true},
		{"502", &FetchError{Kind: KindHTTP, StatusCode: 502}, true},
		{"429", &FetchError{Kind: KindHTTP, StatusCode: 429}, true},
		{"404", &FetchError{Kind: KindHTTP, StatusCode: 404}, false},
		{"403", &FetchError{Kind: KindHTTP, StatusCode: 403}, false},
		{"timeout", &FetchError{Kind: KindTimeout}, true},
		{"connection", &FetchError{Kind: KindConnection}, true},
		{"robots", &FetchError{Kind: KindRobots}, false},
		{"request", &FetchError{Kind: KindRequest}, false},
		{"wrapped", fmt.Errorf("fetch: %w", &FetchError{Kind: KindTimeout}), true},
		{"plain", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestNewErrorRecord(t *testing.T) {
	url := "https://example.org/a"

	rec := NewErrorRecord(url, &FetchError{URL: url, Kind: KindTimeout})
	if rec.Error != "Request timed out" || rec.Description != "The request to https://example.org/a took too long to complete" {
		t.Errorf("unexpected timeout record: %+v", rec)
	}

	rec = NewErrorRecord(url, &FetchError{URL: url, Kind: KindHTTP, StatusCode: 404, Status: "404 Not Found"})
	if rec.Error != "HTTP Error: 404 Not Found" {
		t.Errorf("unexpected http record: %+v", rec)
	}

	rec = NewErrorRecord(url, errors.New("boom"))
	if rec.Error != "boom" || rec.Description != "Failed to process URL: "+url || rec.URL != url {
		t.Errorf("unexpected generic record: %+v", rec)
	}
}
