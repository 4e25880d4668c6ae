package locate

import (
	"strings"

	"github.com/ppiankov/crisislog/internal/normalize"
)

// SiteRules are the ordered selector candidates for one outlet
type SiteRules struct {
	// Name is the outlet display name used as the incident source
	Name string
	// Domains are registrable domains; subdomains match by suffix
	Domains []string
	// Credible outlets produce verified incidents
	Credible bool
	// Agency outlets publish situation reports rather than news
	Agency bool

	Title   []string
	Date    []string
	Content []string
	// Links select article anchors on listing pages
	Links []string
}

// Matches reports whether the registrable domain belongs to this outlet
func (r SiteRules) Matches(domain string) bool {
	for _, d := range r.Domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// Registry maps domains to site rules with a default fallback
type Registry struct {
	rules    []SiteRules
	fallback SiteRules
}

// NewRegistry creates a registry with the built-in outlets
func NewRegistry() *Registry {
	registry := &Registry{fallback: defaultRules}
	for _, r := range builtinRules {
		registry.Register(r)
	}
	return registry
}

// Register adds site rules. Later registrations do not override earlier ones.
func (r *Registry) Register(rules SiteRules) {
	r.rules = append(r.rules, rules)
}

// Find returns the rules for a URL, or the default rules
func (r *Registry) Find(rawURL string) SiteRules {
	domain := normalize.RegistrableDomain(rawURL)
	if domain == "" {
		return r.fallback
	}
	for _, rules := range r.rules {
		if rules.Matches(domain) {
			return rules
		}
	}
	return r.fallback
}

// Default returns the fallback rules
func (r *Registry) Default() SiteRules {
	return r.fallback
}

var defaultRules = SiteRules{
	Title: []string{
		"h1", "h1.article-title", `[data-testid="post-title"]`, ".article-header h1",
		".headline", ".entry-title",
	},
	Date: []string{
		"time[datetime]", "time", `[data-testid="post-date"]`, ".article-date", ".date",
		`span[class*="date"]`, ".published", `meta[property="article:published_time"]`,
	},
	Content: []string{
		`div[data-component="ArticleBody"]`, "div.article-body", "div.wysiwyg", "div.content",
		"article div.text", "main article", ".post-content", `[data-testid="post-content"]`,
		".entry-content", ".story-content", "article", "main",
	},
	Links: []string{`a[href*="/news/"]`, `a[href*="/article"]`, `a[href*="/story"]`},
}

var builtinRules = []SiteRules{
	{
		Name:     "Al Jazeera",
		Domains:  []string{"aljazeera.com"},
		Credible: true,
		Title:    []string{"h1.article-title", ".article-header h1", "h1"},
		Date:     []string{"header time", ".date-simple", "time[datetime]"},
		Content:  []string{".wysiwyg", ".article-body", "article"},
		Links:    []string{`a[href*="/news/"]`, `a[href*="/features/"]`},
	},
	{
		Name:     "BBC",
		Domains:  []string{"bbc.com", "bbc.co.uk"},
		Credible: true,
		Title:    []string{"h1", `[data-component="headline-block"]`},
		Date:     []string{"time[datetime]", "header time", "time"},
		Content:  []string{`[data-component="text-block"]`, "article", "main"},
		Links:    []string{`a[href*="/news/"]`, `a[href*="/articles/"]`},
	},
	{
		Name:     "Reuters",
		Domains:  []string{"reuters.com"},
		Credible: true,
		Title:    []string{"h1", ".article-header"},
		Date:     []string{"time[datetime]", ".published-datetime", "time"},
		Content:  []string{`[data-testid="paragraph-0"]`, ".article-body", ".paywall-article", "article"},
		Links:    []string{`a[href*="/world/"]`},
	},
	{
		Name:     "Associated Press",
		Domains:  []string{"apnews.com"},
		Credible: true,
		Title:    []string{"h1"},
		Date:     []string{`bsp-timestamp[data-timestamp]`, "time[datetime]", `meta[property="article:published_time"]`},
		Content:  []string{".RichTextStoryBody", "div.Page-content", "main"},
		Links:    []string{`a[href*="/article/"]`},
	},
	{
		Name:     "OCHA",
		Agency:   true,
		Domains:  []string{"ochaopt.org", "unocha.org"},
		Credible: true,
		Title:    []string{"h1.page-title", "h1"},
		Date:     []string{".date-display-single", "time[datetime]", "time"},
		Content:  []string{".field-name-body", ".node-content", "article", "main"},
		Links:    []string{`a[href*="/content/"]`},
	},
	{
		Name:     "WHO",
		Agency:   true,
		Domains:  []string{"who.int"},
		Credible: true,
		Title:    []string{"h1"},
		Date:     []string{".timestamp", "time[datetime]", `meta[property="article:published_time"]`},
		Content:  []string{"article", ".sf-content-block", "main"},
		Links:    []string{`a[href*="/news/item/"]`, `a[href*="/emergencies/"]`},
	},
	{
		Name:     "WFP",
		Agency:   true,
		Domains:  []string{"wfp.org"},
		Credible: true,
		Title:    []string{"h1"},
		Date:     []string{"time[datetime]", ".date", "time"},
		Content:  []string{".content-body", "article", "main"},
		Links:    []string{`a[href*="/news/"]`, `a[href*="/stories/"]`},
	},
}
