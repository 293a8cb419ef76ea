package crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

const defaultImageSelector = "img"

// CandidatesFromHTML extracts image candidates from an article card's HTML.
// Every attribute of each matching <img> is kept so SelectImage can prefer lazy-load values.
// When no image matches, og:image / twitter:image meta tags are used instead.
func CandidatesFromHTML(fragment, selector string) ([]domain.ImageCandidate, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if strings.TrimSpace(selector) == "" {
		selector = defaultImageSelector
	}

	var out []domain.ImageCandidate
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil {
			return
		}
		attrs := make(map[string]string, len(node.Attr))
		for _, a := range node.Attr {
			attrs[strings.ToLower(a.Key)] = strings.TrimSpace(a.Val)
		}
		out = append(out, domain.ImageCandidate{URL: attrs["src"], Attrs: attrs})
	})
	if len(out) > 0 {
		return out, nil
	}

	meta := firstNonEmpty(
		metaContent(doc, `meta[property="og:image"]`),
		metaContent(doc, `meta[name="twitter:image"]`),
	)
	if meta != "" {
		out = append(out, domain.ImageCandidate{URL: meta})
	}
	return out, nil
}

func metaContent(doc *goquery.Document, sel string) string {
	if node := doc.Find(sel).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// firstNonEmpty returns the first non-empty string from the given values.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
