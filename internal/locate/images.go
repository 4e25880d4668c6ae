package locate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/normalize"
)

// Images narrower than this are icons or logos
const minImageWidth = 200

func locateImages(doc *goquery.Document, sourceURL string) []model.Image {
	base, _ := url.Parse(sourceURL)
	seen := make(map[string]bool)
	var images []model.Image

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if w, ok := img.Attr("width"); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(w), "px")); err == nil && n < minImageWidth {
				return
			}
		}

		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		src = resolve(base, src)
		if seen[src] {
			return
		}
		seen[src] = true

		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if alt == "" {
			alt = strings.TrimSpace(img.AttrOr("title", ""))
		}

		images = append(images, model.Image{
			URL:     src,
			AltText: normalize.Clean(alt),
			Caption: caption(img),
		})
	})

	return images
}

// caption returns the nearest figcaption of the enclosing figure or parent
func caption(img *goquery.Selection) string {
	if fig := img.Closest("figure"); fig.Length() > 0 {
		if text := normalize.Clean(fig.Find("figcaption").First().Text()); text != "" {
			return text
		}
	}
	return normalize.Clean(img.Parent().Find("figcaption, caption").First().Text())
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
