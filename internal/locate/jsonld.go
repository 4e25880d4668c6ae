package locate

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkedData holds the JSON-LD article fields used as fallbacks
type linkedData struct {
	Headline      string
	DatePublished string
}

// parseJSONLD reads the first article-like object from ld+json blocks.
// Objects may appear alone, in arrays or under @graph.
func parseJSONLD(doc *goquery.Document) linkedData {
	var found linkedData
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			return true
		}
		found = collectLinkedData(raw, found)
		return found.Headline == "" || found.DatePublished == ""
	})
	return found
}

func collectLinkedData(v any, acc linkedData) linkedData {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			acc = collectLinkedData(item, acc)
		}
	case map[string]any:
		if acc.Headline == "" {
			if h, ok := node["headline"].(string); ok {
				acc.Headline = strings.TrimSpace(h)
			}
		}
		if acc.DatePublished == "" {
			if d, ok := node["datePublished"].(string); ok {
				acc.DatePublished = strings.TrimSpace(d)
			}
		}
		if graph, ok := node["@graph"]; ok {
			acc = collectLinkedData(graph, acc)
		}
	}
	return acc
}
