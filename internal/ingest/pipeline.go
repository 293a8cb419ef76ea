// Package ingest turns raw scraped articles into storage decisions.
//
// Pipeline is the pure part: it reads the rule set, the source registry and a
// snapshot of what is already stored, and performs no I/O. Runner drives a
// Pipeline over a batch and talks to the store and the publishers.
package ingest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adda-Baaj/berita-emiten/internal/crawler"
	"github.com/Adda-Baaj/berita-emiten/internal/domain"
	"github.com/Adda-Baaj/berita-emiten/internal/fingerprint"
	"github.com/Adda-Baaj/berita-emiten/internal/normalizer"
	"github.com/Adda-Baaj/berita-emiten/internal/relevance"
	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
)

// maxTextRunes caps stored titles and summaries.
const maxTextRunes = 500

// Outcome is the terminal state of one ingested article.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeMergedTicker
	OutcomeRejectedNoise
	OutcomeRejectedDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeMergedTicker:
		return "merged_ticker"
	case OutcomeRejectedNoise:
		return "rejected_noise"
	case OutcomeRejectedDuplicate:
		return "rejected_duplicate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what Ingest decided for one article.
type Result struct {
	Outcome     Outcome
	Fingerprint string
	Ticker      string
	Source      domain.Source
	URL         string
	// Article is set for OutcomeInserted only.
	Article   *domain.NormalizedArticle
	Relevance relevance.Explanation
}

// Known answers which tickers are already stored under a fingerprint.
type Known interface {
	Symbols(fp string) ([]string, bool)
}

// KnownMap is an in-memory Known, keyed by fingerprint.
type KnownMap map[string][]string

// Symbols implements Known.
func (k KnownMap) Symbols(fp string) ([]string, bool) {
	s, ok := k[fp]
	return s, ok
}

// Apply records the effect of r, as a store would.
func (k KnownMap) Apply(r Result) {
	switch r.Outcome {
	case OutcomeInserted:
		k[r.Fingerprint] = append([]string(nil), r.Article.StockSymbols...)
	case OutcomeMergedTicker:
		if !contains(k[r.Fingerprint], r.Ticker) {
			k[r.Fingerprint] = append(k[r.Fingerprint], r.Ticker)
		}
	}
}

type noneKnown struct{}

func (noneKnown) Symbols(string) ([]string, bool) { return nil, false }

// Pipeline composes the classifier, the time normalizer, the image validator and the fingerprint engine.
// It holds only read-only collaborators and is safe for concurrent use.
type Pipeline struct {
	rules     *relevance.Holder
	times     *normalizer.TimeNormalizer
	providers *providers.Registry
}

// NewPipeline wires a pipeline. Nil collaborators fall back to the built-in defaults.
func NewPipeline(rules *relevance.Holder, times *normalizer.TimeNormalizer, reg *providers.Registry) (*Pipeline, error) {
	if rules == nil {
		rs, err := relevance.DefaultRules()
		if err != nil {
			return nil, fmt.Errorf("default rules: %w", err)
		}
		rules = relevance.NewHolder(rs)
	}
	if times == nil {
		times = normalizer.NewTimeNormalizer(nil)
	}
	if reg == nil {
		reg = providers.DefaultRegistry()
	}
	return &Pipeline{rules: rules, times: times, providers: reg}, nil
}

// Ingest decides what happens to raw. ref is the scrape time used for relative timestamps.
// The only error is a wrapped domain.ErrMalformedArticle.
func (p *Pipeline) Ingest(raw domain.RawArticle, ref time.Time, known Known) (Result, error) {
	if err := raw.Validate(); err != nil {
		return Result{}, err
	}
	if known == nil {
		known = noneKnown{}
	}

	provider, _ := p.providers.Lookup(raw.Source)
	link, err := provider.ResolveLink(raw.URL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrMalformedArticle, err)
	}
	raw.URL = link

	fp := fingerprint.ForArticle(raw)
	res := Result{Fingerprint: fp, Ticker: raw.Ticker, Source: raw.Source, URL: raw.URL}

	if symbols, ok := known.Symbols(fp); ok {
		if contains(symbols, raw.Ticker) {
			res.Outcome = OutcomeRejectedDuplicate
		} else {
			res.Outcome = OutcomeMergedTicker
		}
		return res, nil
	}

	res.Relevance = p.rules.Explain(raw.Ticker, raw.Title, raw.Summary)
	if res.Relevance.Decision == relevance.Reject {
		res.Outcome = OutcomeRejectedNoise
		return res, nil
	}

	art := &domain.NormalizedArticle{
		Fingerprint:  fp,
		Ticker:       raw.Ticker,
		Title:        truncateRunes(strings.TrimSpace(raw.Title), maxTextRunes),
		Summary:      truncateRunes(strings.TrimSpace(raw.Summary), maxTextRunes),
		Source:       raw.Source,
		URL:          raw.URL,
		RawPublished: raw.RawPublished,
		StockSymbols: []string{raw.Ticker},
	}
	if ts, err := p.times.NormalizeIn(raw.RawPublished, ref, provider.Zone()); err == nil {
		art.PublishedAt = &ts
	}
	if img, ok := crawler.SelectImage(raw.CandidateImages); ok {
		art.ImageURL = img
	}

	res.Outcome = OutcomeInserted
	res.Article = art
	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
