package providers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

// Indonesian civil time zones. Fixed offsets keep parsing independent of the host tzdata.
var (
	WIB  = time.FixedZone("WIB", 7*60*60)
	WITA = time.FixedZone("WITA", 8*60*60)
	WIT  = time.FixedZone("WIT", 9*60*60)
)

// Provider describes one news site and how its tag listing page is laid out.
type Provider struct {
	ID              domain.Source
	Name            string
	TagURLPattern   string // contains {symbol}
	BaseURL         string
	ArticleSelector string
	TitleSelector   string
	LinkSelector    string // empty when the article container is itself the link
	DateSelector    string
	SummarySelector string
	ImageSelector   string
	Location        *time.Location // nil: the normalizer's configured zone
}

// TagURL returns the tag page listing articles for symbol.
func (p Provider) TagURL(symbol string) string {
	return strings.ReplaceAll(p.TagURLPattern, "{symbol}", strings.ToLower(strings.TrimSpace(symbol)))
}

// ResolveLink turns a site relative link into an absolute URL on the provider's host.
func (p Provider) ResolveLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("provider %s: empty link", p.ID)
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("provider %s: parse link: %w", p.ID, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link, nil
	}

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("provider %s: parse base url: %w", p.ID, err)
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Host == "" {
		return "", fmt.Errorf("provider %s: cannot resolve relative link %q", p.ID, link)
	}
	return resolved.String(), nil
}

// Zone returns the zone pinned for the provider, or nil when its naive timestamps
// follow the configured ingest timezone.
func (p Provider) Zone() *time.Location {
	return p.Location
}

func defaultProviders() []Provider {
	return []Provider{
		{
			ID:              domain.SourceKontan,
			Name:            "Kontan",
			TagURLPattern:   "https://www.kontan.co.id/tag/{symbol}",
			BaseURL:         "https://www.kontan.co.id",
			ArticleSelector: "#load_berita > li",
			TitleSelector:   ".sp-hl h1 a",
			LinkSelector:    ".sp-hl h1 a",
			DateSelector:    ".font-gray",
			ImageSelector:   "div.pic img",
		},
		{
			ID:              domain.SourceCNBC,
			Name:            "CNBC Indonesia",
			TagURLPattern:   "https://www.cnbcindonesia.com/tag/{symbol}",
			BaseURL:         "https://www.cnbcindonesia.com",
			ArticleSelector: "article",
			TitleSelector:   "h2",
			LinkSelector:    "a",
			DateSelector:    "span > span:last-child",
			ImageSelector:   "img",
		},
		{
			ID:              domain.SourceInvestor,
			Name:            "Investor.id",
			TagURLPattern:   "https://investor.id/tag/{symbol}",
			BaseURL:         "https://investor.id",
			ArticleSelector: ".row.mb-4.position-relative",
			TitleSelector:   "h4.my-3",
			LinkSelector:    "a.stretched-link",
			DateSelector:    "span.text-muted.small",
			SummarySelector: "span.text-muted.text-truncate-2-lines",
			ImageSelector:   ".col-4 img",
		},
		{
			ID:              domain.SourceIDXChannel,
			Name:            "IDX Channel",
			TagURLPattern:   "https://www.idxchannel.com/tag/{symbol}",
			BaseURL:         "https://www.idxchannel.com",
			ArticleSelector: ".bt-con",
			TitleSelector:   "h2.list-berita-baru a",
			LinkSelector:    "h2.list-berita-baru a",
			DateSelector:    ".mh-clock",
			ImageSelector:   "img",
		},
		{
			ID:              domain.SourceKompas,
			Name:            "Kompas",
			TagURLPattern:   "https://www.kompas.com/tag/{symbol}",
			BaseURL:         "https://www.kompas.com",
			ArticleSelector: "a.article-link",
			TitleSelector:   "h2.articleTitle",
			DateSelector:    ".articlePost-date",
			ImageSelector:   ".articleItem-img img",
		},
	}
}
