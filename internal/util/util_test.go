package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\nCrawl-delay: 3\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "Mozilla/5.0 (X11)", 5*time.Second)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/news/2024/1/15/strike")
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("expected /news path to be allowed")
	}
	if delay != 3*time.Second {
		t.Errorf("expected 3s crawl delay, got %v", delay)
	}

	if checker.IsAllowed(ctx, server.URL+"/private/page") {
		t.Error("expected /private path to be disallowed")
	}
	if got := robotsHits.Load(); got != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", got)
	}

	checker.Clear()
	_ = checker.CrawlDelay(ctx, server.URL+"/")
	if got := robotsHits.Load(); got != 2 {
		t.Errorf("expected refetch after Clear, got %d", got)
	}
}

func TestRobotsCheckerMissingFileAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(nil, "crisislog", time.Second)
	if !checker.IsAllowed(context.Background(), server.URL+"/anything") {
		t.Error("expected missing robots.txt to allow")
	}
}

func TestRobotsCheckerBadURL(t *testing.T) {
	checker := NewRobotsChecker(nil, "crisislog", time.Second)
	if _, _, err := checker.CanFetch(context.Background(), "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Mozilla"},
		{"crisislog/1.0", "crisislog"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUserAgent(tt.in); got != tt.want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "internal.example")

	req, _ := http.NewRequest(http.MethodGet, "https://www.aljazeera.com/news", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("expected https request to use the http proxy, got %v", got)
	}

	req.URL, _ = url.Parse("http://internal.example/page")
	got, err = proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no proxy for NO_PROXY host, got %v", got)
	}
}
