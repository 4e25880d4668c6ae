// Package discover finds crisis-related article URLs on news listing pages
// and in RSS or Atom feeds.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/crisislog/internal/locate"
	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/normalize"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

// DefaultLimit caps the URLs returned from one page
const DefaultLimit = 50

// DefaultKeywords mark a link as belonging to the monitored crisis
var DefaultKeywords = []string{
	"gaza", "palestine", "palestinian", "israel", "israeli",
	"rafah", "khan younis", "jabalia", "deir al-balah",
	"hamas", "idf", "west bank", "jerusalem",
}

// Generic selectors tried on every listing after the site's own link rules
var genericLinkSelectors = []string{
	`a[href*="article"]`, `a[href*="news"]`, `a[href*="story"]`,
	"article a", ".post a", ".news-item a",
}

// PageFetcher retrieves a page body
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*pipeline.FetchResult, error)
}

// Link is one discovered article
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	// Published is RFC3339 when the feed carried a date
	Published string `json:"published,omitempty"`
}

// Options configures a Discoverer
type Options struct {
	Registry *locate.Registry
	Keywords []string
	Limit    int
	Logger   logger.Logger
}

// Discoverer extracts relevant article links
type Discoverer struct {
	fetcher  PageFetcher
	registry *locate.Registry
	matcher  *matcher
	limit    int
	log      logger.Logger
}

// New creates a Discoverer
func New(fetcher PageFetcher, opts Options) *Discoverer {
	d := &Discoverer{
		fetcher:  fetcher,
		registry: opts.Registry,
		limit:    opts.Limit,
		log:      opts.Logger,
	}
	if d.registry == nil {
		d.registry = locate.NewRegistry()
	}
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	d.matcher = newMatcher(keywords)
	if d.limit <= 0 {
		d.limit = DefaultLimit
	}
	if d.log == nil {
		d.log = logger.NewNop()
	}
	return d
}

// Discover fetches pageURL and reads it as a feed when it looks like one,
// otherwise as an HTML listing.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) ([]Link, error) {
	res, err := d.fetcher.FetchWithRetry(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if isFeed(res.ContentType, res.HTML) {
		return d.parseFeed(ctx, res.HTML)
	}
	return d.parseListing(res.HTML, pageURL)
}

// FromListing returns relevant article links found on an HTML listing page
func (d *Discoverer) FromListing(ctx context.Context, pageURL string) ([]Link, error) {
	res, err := d.fetcher.FetchWithRetry(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return d.parseListing(res.HTML, pageURL)
}

// FromFeed returns relevant entries of an RSS or Atom feed
func (d *Discoverer) FromFeed(ctx context.Context, feedURL string) ([]Link, error) {
	res, err := d.fetcher.FetchWithRetry(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return d.parseFeed(ctx, res.HTML)
}

func (d *Discoverer) parseListing(htmlContent, pageURL string) ([]Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	selectors := append(append([]string{}, d.registry.Find(pageURL).Links...), genericLinkSelectors...)

	links := make([]Link, 0)
	seen := make(map[string]bool)
	for _, selector := range selectors {
		doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			abs := absolute(base, href)
			if abs == "" {
				return true
			}
			text := normalize.Clean(a.Text())
			if !d.matcher.any(abs) && !d.matcher.any(text) {
				return true
			}
			abs = normalize.CleanURL(abs)
			if seen[abs] {
				return true
			}
			seen[abs] = true
			links = append(links, Link{URL: abs, Title: text})
			return len(links) < d.limit
		})
		if len(links) >= d.limit {
			break
		}
	}

	d.log.Debug("listing discovered",
		logger.String("url", pageURL),
		logger.Int("links", len(links)))
	return links, nil
}

func (d *Discoverer) parseFeed(ctx context.Context, body string) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	links := make([]Link, 0, len(feed.Items))
	seen := make(map[string]bool)
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		if link == "" {
			continue
		}
		if !d.matcher.any(item.Title + " " + item.Description + " " + link) {
			continue
		}
		link = normalize.CleanURL(link)
		if seen[link] {
			continue
		}
		seen[link] = true

		l := Link{URL: link, Title: normalize.Clean(item.Title)}
		if item.PublishedParsed != nil {
			l.Published = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		links = append(links, l)
		if len(links) >= d.limit {
			break
		}
	}
	return links, nil
}

// Relevant reports whether the URL or its anchor text mentions the crisis
func Relevant(rawURL, text string) bool {
	return defaultMatcher.any(rawURL) || defaultMatcher.any(text)
}

func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func isFeed(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return false
	}
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		return true
	}
	head := bytes.TrimSpace([]byte(body))
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<?xml")) ||
		bytes.HasPrefix(lower, []byte("<rss")) ||
		bytes.HasPrefix(lower, []byte("<feed"))
}

var defaultMatcher = newMatcher(DefaultKeywords)

// matcher is a case-insensitive any-keyword test
type matcher struct {
	mu sync.Mutex
	m  *ahocorasick.Matcher
}

func newMatcher(keywords []string) *matcher {
	lower := make([]string, len(keywords))
	for i, kw := range keywords {
		lower[i] = strings.ToLower(kw)
	}
	return &matcher{m: ahocorasick.NewStringMatcher(lower)}
}

func (m *matcher) any(text string) bool {
	if text == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m.Match([]byte(strings.ToLower(text)))) > 0
}
