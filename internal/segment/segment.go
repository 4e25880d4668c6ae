// Package segment splits free text into candidate incident units.
package segment

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/ppiankov/crisislog/internal/normalize"
)

const (
	// MinUnitLen is the shortest unit that can carry a verifiable claim
	MinUnitLen = 30
	// A single paragraph longer than this is re-split into sentences
	sentenceSplitThreshold = 300
	// DigestCap caps RelevantParagraphs output
	DigestCap = 800
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// Split breaks text into paragraph units on blank lines. A single long
// paragraph is re-split into sentences. Units shorter than MinUnitLen are dropped.
func Split(text string) []string {
	paragraphs := nonEmpty(blankLineRe.Split(strings.TrimSpace(text), -1))

	if len(paragraphs) == 1 && len(paragraphs[0]) > sentenceSplitThreshold {
		paragraphs = Sentences(paragraphs[0])
	}

	units := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = normalize.Clean(p)
		if len(p) >= MinUnitLen {
			units = append(units, p)
		}
	}
	return units
}

// Sentences segments text with prose's sentence tokenizer, falling back to
// punctuation splitting when the tokenizer yields nothing.
func Sentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false))
	if err == nil {
		var sentences []string
		for _, s := range doc.Sentences() {
			if t := strings.TrimSpace(s.Text); t != "" {
				sentences = append(sentences, t)
			}
		}
		if len(sentences) > 0 {
			return sentences
		}
	}
	return splitOnPunctuation(text)
}

// splitOnPunctuation splits after . ! ? followed by whitespace
func splitOnPunctuation(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// RelevantParagraphs joins the lines of text that mention any keyword,
// capped at max runes with an ellipsis. max <= 0 means DigestCap.
func RelevantParagraphs(text string, keywords []string, max int) string {
	if max <= 0 {
		max = DigestCap
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				kept = append(kept, line)
				break
			}
		}
	}

	return normalize.TruncateEllipsis(strings.Join(kept, " "), max)
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
