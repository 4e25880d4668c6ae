// Package normalize cleans extracted text and URLs so they are safe to persist.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Newsletter, social and advertising prompts that leak into article bodies
	boilerplateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(subscribe to our newsletter|sign up for our daily newsletter|subscribe now)`),
		regexp.MustCompile(`(?i)(follow us on|share this article)`),
		regexp.MustCompile(`(?i)(advertisement|sponsored content|paid content)`),
	}
)

// Clean collapses whitespace runs into single spaces and trims the result
func Clean(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StripBoilerplate removes subscription, social and advertising prompts
func StripBoilerplate(s string) string {
	s = Clean(s)
	for _, re := range boilerplateRes {
		s = re.ReplaceAllString(s, "")
	}
	return Clean(s)
}

// Sanitize makes s safe for a single CSV cell: no newlines, no double quotes.
func Sanitize(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", `"`, "'").Replace(s)
	return Clean(s)
}

// Truncate caps s at n runes
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TruncateEllipsis caps s at n runes and marks the cut with "..."
func TruncateEllipsis(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}

var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// CleanURL drops tracking query parameters, preserving order of the rest
func CleanURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	if parsed.RawQuery != "" {
		var kept []string
		for _, param := range strings.Split(parsed.RawQuery, "&") {
			key, _, _ := strings.Cut(param, "=")
			if strings.HasPrefix(key, "utm_") || trackingParams[key] {
				continue
			}
			if param != "" {
				kept = append(kept, param)
			}
		}
		parsed.RawQuery = strings.Join(kept, "&")
	}

	return parsed.String()
}

// RegistrableDomain returns the lowercased host without a leading "www."
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
