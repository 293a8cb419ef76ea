package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Domain contains core models and interfaces.

// Source identifies the news site an article was scraped from.
type Source string

const (
	SourceKontan     Source = "kontan"
	SourceCNBC       Source = "cnbc"
	SourceInvestor   Source = "investor"
	SourceIDXChannel Source = "idxchannel"
	SourceKompas     Source = "kompas"
)

// Sources lists every supported source in a stable order.
var Sources = []Source{SourceKontan, SourceCNBC, SourceInvestor, SourceIDXChannel, SourceKompas}

// Valid reports whether s is one of the supported sources.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

var (
	// ErrMalformedArticle marks a raw article that must be dropped instead of ingested.
	ErrMalformedArticle = errors.New("malformed raw article")
	// ErrAlreadyExists is returned by persistence when the fingerprint is already stored.
	ErrAlreadyExists = errors.New("article already exists")
	// ErrNotFound is returned by persistence when no article has the fingerprint.
	ErrNotFound = errors.New("article not found")
)

var tickerPattern = regexp.MustCompile(`^[A-Z]{2,5}$`)

// ValidTicker reports whether symbol looks like an IDX ticker.
func ValidTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}

// ImageCandidate is one image element found next to an article on a listing page.
type ImageCandidate struct {
	URL   string            `json:"url"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// RawArticle is what the scraping layer hands to the ingestion core.
type RawArticle struct {
	Ticker          string           `json:"ticker"`
	Title           string           `json:"title"`
	Summary         string           `json:"summary,omitempty"`
	Source          Source           `json:"source"`
	URL             string           `json:"url"`
	RawPublished    string           `json:"raw_published,omitempty"`
	CandidateImages []ImageCandidate `json:"candidate_images,omitempty"`
}

// Validate checks the invariants every raw article must satisfy before ingestion.
func (a RawArticle) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("%w: url is empty", ErrMalformedArticle)
	}
	if !ValidTicker(a.Ticker) {
		return fmt.Errorf("%w: ticker %q does not match [A-Z]{2,5}", ErrMalformedArticle, a.Ticker)
	}
	if !a.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrMalformedArticle, a.Source)
	}
	return nil
}

// NormalizedArticle is an accepted article ready for persistence.
type NormalizedArticle struct {
	Fingerprint  string     `json:"hash"`
	Ticker       string     `json:"ticker"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	Source       Source     `json:"source"`
	URL          string     `json:"url"`
	RawPublished string     `json:"raw_published,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	StockSymbols []string   `json:"stock_symbols"`
}

// HasSymbol reports whether ticker is already attached to the article.
func (a *NormalizedArticle) HasSymbol(ticker string) bool {
	for _, s := range a.StockSymbols {
		if s == ticker {
			return true
		}
	}
	return false
}
