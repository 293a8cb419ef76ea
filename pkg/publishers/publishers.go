// Package publishers fans ingestion outcome events out to HTTP sinks and cloud queues.
package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event describes what happened to one scraped article.
type Event struct {
	ID           string     `json:"id"`
	Outcome      string     `json:"outcome"`
	Fingerprint  string     `json:"hash"`
	Ticker       string     `json:"ticker"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	StockSymbols []string   `json:"stock_symbols,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Attributes are the routing attributes attached to queue messages.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"source":  e.Source,
		"ticker":  e.Ticker,
		"outcome": e.Outcome,
	}
}

func encodeEvent(evt Event) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}

// Publisher delivers events to one configured destination.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Logger is the logging surface publishers need.
type Logger interface {
	DebugObj(msg, event string, fields map[string]any)
	InfoObj(msg, event string, fields map[string]any)
	WarnObj(msg, event string, fields map[string]any)
	ErrorObj(msg, event string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) DebugObj(string, string, map[string]any) {}
func (nopLogger) InfoObj(string, string, map[string]any)  {}
func (nopLogger) WarnObj(string, string, map[string]any)  {}
func (nopLogger) ErrorObj(string, string, map[string]any) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}
