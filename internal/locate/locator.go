// Package locate isolates the title, publish date, body text and images of
// an article from arbitrary HTML using ordered, site-aware selector lists.
package locate

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/normalize"
)

const (
	// Content shorter than this is treated as a selector miss
	minContentLen = 50
	// Paragraph fallback keeps only paragraphs longer than this
	minParagraphLen = 20
)

// Article is the content located in one HTML document. Missing fields are empty.
type Article struct {
	Title         string
	PublishedDate string
	Body          string
	Images        []model.Image

	// Outlet is the display name of the publishing site, or its host
	Outlet   string
	Credible bool
	Agency   bool
}

// Options configures a Locator
type Options struct {
	// Readability enables the go-readability fallback for body text
	Readability bool
	Registry    *Registry
}

// Locator finds article content with per-site rules
type Locator struct {
	registry    *Registry
	readability bool
}

// New creates a locator. A nil registry means the built-in outlets.
func New(opts Options) *Locator {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Locator{registry: registry, readability: opts.Readability}
}

// Registry returns the site rules registry
func (l *Locator) Registry() *Registry {
	return l.registry
}

// Locate extracts the article from htmlContent. It never fails: anything it
// cannot find is left empty.
func (l *Locator) Locate(htmlContent, sourceURL string) Article {
	rules := l.registry.Find(sourceURL)

	article := Article{
		Outlet:   rules.Name,
		Credible: rules.Credible,
		Agency:   rules.Agency,
	}
	if article.Outlet == "" {
		article.Outlet = normalize.RegistrableDomain(sourceURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return article
	}

	meta := parseJSONLD(doc)

	article.Title = locateTitle(doc, rules, meta)
	article.PublishedDate = locateDate(doc, rules, meta)
	article.Body = l.locateBody(doc, rules, htmlContent, sourceURL)
	article.Images = locateImages(doc, sourceURL)

	return article
}

func locateTitle(doc *goquery.Document, rules SiteRules, meta linkedData) string {
	if title := firstText(doc, rules.Title); title != "" {
		return title
	}
	if meta.Headline != "" {
		return normalize.Clean(meta.Headline)
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return normalize.Clean(og)
	}
	return normalize.Clean(doc.Find("title").First().Text())
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := normalize.Clean(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// locateDate prefers machine-readable attributes over display text
func locateDate(doc *goquery.Document, rules SiteRules, meta linkedData) string {
	for _, selector := range rules.Date {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		for _, attr := range []string{"datetime", "data-timestamp", "content"} {
			if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		if text := normalize.Clean(sel.Text()); text != "" {
			return text
		}
	}
	return strings.TrimSpace(meta.DatePublished)
}

func (l *Locator) locateBody(doc *goquery.Document, rules SiteRules, htmlContent, sourceURL string) string {
	for _, selector := range rules.Content {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if body := selectionText(sel); len(body) >= minContentLen {
			return body
		}
	}

	if l.readability {
		if body := readableText(htmlContent, sourceURL); len(body) >= minContentLen {
			return body
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := normalize.Clean(p.Text()); len(text) > minParagraphLen {
			paragraphs = append(paragraphs, text)
		}
	})
	if body := joinParagraphs(paragraphs); body != "" {
		return body
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return ""
	}
	return normalize.StripBoilerplate(visibleText(body.Nodes[0]))
}

// selectionText joins the paragraphs inside sel, or its text when it has none
func selectionText(sel *goquery.Selection) string {
	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, p.Text())
	})
	if len(paragraphs) == 0 {
		sel.Each(func(_ int, s *goquery.Selection) {
			s.Find("script, style, noscript").Remove()
			paragraphs = append(paragraphs, s.Text())
		})
	}
	return joinParagraphs(paragraphs)
}

// joinParagraphs strips boilerplate per paragraph and keeps blank-line breaks
func joinParagraphs(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = normalize.StripBoilerplate(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func readableText(htmlContent, sourceURL string) string {
	parsedURL, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(htmlContent), parsedURL)
	if err != nil {
		return ""
	}
	return joinParagraphs(strings.Split(article.TextContent, "\n"))
}
