package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/crisislog/internal/model"
)

const articleHTML = `<html><head><title>ignored</title></head><body>
<h1>Airstrike hits shelter in Khan Younis</h1>
<time datetime="2024-03-10T08:15:00Z">10 March 2024</time>
<article>
<p>An airstrike on a school used as a shelter in Khan Younis killed 12 people and injured 30 others, medical officials said.</p>
<p>Rescue teams were still searching the rubble on Sunday evening.</p>
</article>
</body></html>`

const quietHTML = `<html><body><h1>Weather</h1><article>
<p>The forecast for the coming week is sunny with light winds along the coast.</p>
</article></body></html>`

var fixedClock = func() time.Time { return time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC) }

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.HTTP = testHTTPConfig()
	cfg.HTTP.MaxRetries = 1
	cfg.Cache.Enabled = false
	cfg.RateLimiting.Delay = 0
	return cfg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/news/strike":
			_, _ = fmt.Fprint(w, articleHTML)
		case "/news/weather":
			_, _ = fmt.Fprint(w, quietHTML)
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPipeline_ExtractText(t *testing.T) {
	p := NewPipeline(testConfig(), Deps{Clock: fixedClock})

	text := "Shelling in Rafah killed 5 people on Monday, local officials reported.\n\n" +
		"The weather stayed warm and dry across the region this week.\n\n" +
		"A convoy carrying food aid was blocked at the crossing for the third day."
	incidents := p.ExtractText(text)

	if len(incidents) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(incidents))
	}
	if incidents[0].Casualties.Deaths != 5 {
		t.Errorf("expected 5 deaths, got %d", incidents[0].Casualties.Deaths)
	}
	if incidents[0].Location != "Rafah" {
		t.Errorf("expected Rafah, got %q", incidents[0].Location)
	}
	if incidents[0].ID == incidents[1].ID {
		t.Errorf("expected distinct ids, got %s twice", incidents[0].ID)
	}
	for _, inc := range incidents {
		if inc.Sources[0] != "Manual input" {
			t.Errorf("expected manual source, got %v", inc.Sources)
		}
	}
}

func TestPipeline_ExtractURL(t *testing.T) {
	server := newTestServer(t)
	p := NewPipeline(testConfig(), Deps{Clock: fixedClock})

	incidents, err := p.ExtractURL(context.Background(), server.URL+"/news/strike")
	if err != nil {
		t.Fatalf("ExtractURL failed: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incidents))
	}

	inc := incidents[0]
	if inc.Title != "Airstrike hits shelter in Khan Younis" {
		t.Errorf("unexpected title: %q", inc.Title)
	}
	if inc.Date != "2024-03-10" || inc.Time != "08:15:00" {
		t.Errorf("unexpected date/time: %s %s", inc.Date, inc.Time)
	}
	if inc.Location != "Khan Younis" {
		t.Errorf("unexpected location: %q", inc.Location)
	}
	if inc.Casualties.Deaths != 12 || inc.Casualties.Injured != 30 {
		t.Errorf("unexpected casualties: %+v", inc.Casualties)
	}
	if inc.SourceURL != server.URL+"/news/strike" {
		t.Errorf("unexpected source url: %s", inc.SourceURL)
	}
	if inc.Verified != model.VerifiedPending {
		t.Errorf("unknown outlets stay pending, got %s", inc.Verified)
	}

	again, err := p.ExtractURL(context.Background(), server.URL+"/news/strike")
	if err != nil {
		t.Fatal(err)
	}
	if again[0].ID != inc.ID {
		t.Errorf("expected stable id across runs, got %s and %s", inc.ID, again[0].ID)
	}
}

func TestPipeline_ExtractURL_NotRelevant(t *testing.T) {
	server := newTestServer(t)
	p := NewPipeline(testConfig(), Deps{Clock: fixedClock})

	incidents, err := p.ExtractURL(context.Background(), server.URL+"/news/weather")
	if err != nil {
		t.Fatalf("ExtractURL failed: %v", err)
	}
	if len(incidents) != 0 {
		t.Errorf("expected no incidents, got %+v", incidents)
	}
}

func TestPipeline_ExtractURL_Empty(t *testing.T) {
	p := NewPipeline(testConfig(), Deps{})
	if _, err := p.ExtractURL(context.Background(), "   "); err == nil {
		t.Error("expected error for empty URL")
	}
}

// pageTransport serves fixed HTML for any request
type pageTransport string

func (t pageTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(string(t))),
		Request:    req,
	}, nil
}

func TestPipeline_ExtractDigest(t *testing.T) {
	page := `<html><body><h1>Situation update 42</h1><article>
<p>Hospitals in northern Gaza report severe shortages of fuel and medicine.</p>
<p>The next update will be published on Thursday.</p>
</article></body></html>`

	tests := []struct {
		name     string
		url      string
		verified model.Verified
		kind     model.EvidenceKind
	}{
		{"agency", "https://www.who.int/emergencies/situation-update-42", model.VerifiedVerified, model.EvidenceKindReport},
		{"news", "https://example-news.org/live/gaza", model.VerifiedUnverified, model.EvidenceKindMediaReport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewFetcher(testHTTPConfig())
			fetcher.httpClient.Transport = pageTransport(page)
			p := NewPipeline(testConfig(), Deps{Clock: fixedClock, Fetcher: fetcher})

			inc, err := p.ExtractDigest(context.Background(), tt.url)
			if err != nil {
				t.Fatalf("ExtractDigest failed: %v", err)
			}
			if inc == nil {
				t.Fatal("expected a digest incident")
			}
			if inc.Verified != tt.verified {
				t.Errorf("expected %s, got %s", tt.verified, inc.Verified)
			}
			if inc.Evidence.Len() == 0 || inc.Evidence.Types[0] != tt.kind {
				t.Errorf("unexpected evidence: %+v", inc.Evidence)
			}
			if strings.Contains(inc.Description, "next update") {
				t.Errorf("irrelevant paragraph kept: %q", inc.Description)
			}
		})
	}
}

func TestPipeline_ExtractURLs_FailureIsolated(t *testing.T) {
	server := newTestServer(t)
	cfg := testConfig()
	cfg.HTTP.Timeout = 100 * time.Millisecond
	p := NewPipeline(cfg, Deps{Clock: fixedClock})

	urls := []string{
		server.URL + "/news/strike",
		server.URL + "/slow",
		server.URL + "/news/strike?page=2",
	}
	progress := model.NewProgress()
	result := p.ExtractURLs(context.Background(), urls, progress)

	if result.Stats.TotalURLs != 3 || result.Stats.SuccessfulURLs != 2 || result.Stats.FailedURLs != 1 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].URL != urls[1] || result.Errors[0].Error != "Request timed out" {
		t.Errorf("unexpected error record: %+v", result.Errors[0])
	}
	if len(result.Incidents) != 2 {
		t.Errorf("expected 2 incidents, got %d", len(result.Incidents))
	}
	if snap := progress.Snapshot(); snap.ProcessedURLs != 3 {
		t.Errorf("expected progress for all URLs, got %+v", snap)
	}
}
