// Package relevance decides whether an article tagged to a ticker is genuine ticker news.
package relevance

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

//go:embed keywords.yaml
var defaultRulesYAML []byte

// RuleFile is the on-disk shape of the keyword rule set.
type RuleFile struct {
	Defaults struct {
		Positive []string `json:"positive" yaml:"positive"`
	} `json:"defaults" yaml:"defaults"`
	Rules []TickerRule `json:"rules" yaml:"rules"`
}

// TickerRule lists the noise and context terms for one risky ticker.
type TickerRule struct {
	Ticker   string   `json:"ticker" yaml:"ticker"`
	Negative []string `json:"negative" yaml:"negative"`
	Positive []string `json:"positive" yaml:"positive"`
}

// termMatcher finds word-initial occurrences of a fixed list of terms.
type termMatcher struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func newTermMatcher(raw []string) termMatcher {
	seen := make(map[string]struct{}, len(raw))
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		n := strings.TrimRight(normalizeText(t), " ")
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		terms = append(terms, n)
	}
	if len(terms) == 0 {
		return termMatcher{}
	}
	return termMatcher{terms: terms, matcher: ahocorasick.NewStringMatcher(terms)}
}

// find returns the matched terms without the leading boundary space.
func (t termMatcher) find(text []byte) []string {
	if t.matcher == nil {
		return nil
	}
	hits := t.matcher.MatchThreadSafe(text)
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, 0, len(hits))
	seen := make(map[int]struct{}, len(hits))
	for _, idx := range hits {
		if _, dup := seen[idx]; dup || idx >= len(t.terms) {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, strings.TrimSpace(t.terms[idx]))
	}
	return out
}

type tickerRules struct {
	negative termMatcher
	positive termMatcher
}

// RuleSet is the immutable keyword configuration. Build it once and share it.
type RuleSet struct {
	rules map[string]tickerRules
}

// NewRuleSet compiles a rule file. Every risky ticker needs at least one negative term.
func NewRuleSet(file RuleFile) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[string]tickerRules, len(file.Rules))}

	for i, r := range file.Rules {
		ticker := strings.ToUpper(strings.TrimSpace(r.Ticker))
		if !domain.ValidTicker(ticker) {
			return nil, fmt.Errorf("rules[%d]: invalid ticker %q", i, r.Ticker)
		}
		if _, exists := rs.rules[ticker]; exists {
			return nil, fmt.Errorf("rules[%d]: duplicate ticker %q", i, ticker)
		}

		neg := newTermMatcher(r.Negative)
		if neg.matcher == nil {
			return nil, fmt.Errorf("rules[%d]: ticker %q has no negative terms", i, ticker)
		}

		positives := make([]string, 0, len(file.Defaults.Positive)+len(r.Positive))
		positives = append(positives, file.Defaults.Positive...)
		positives = append(positives, r.Positive...)

		rs.rules[ticker] = tickerRules{negative: neg, positive: newTermMatcher(positives)}
	}

	return rs, nil
}

// DefaultRules returns the rule set bundled with the binary.
func DefaultRules() (*RuleSet, error) {
	file, err := decodeRuleFile(defaultRulesYAML, ".yaml")
	if err != nil {
		return nil, fmt.Errorf("embedded keywords: %w", err)
	}
	return NewRuleSet(file)
}

// LoadRules reads a YAML or JSON rule file.
func LoadRules(path string) (*RuleSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("keywords file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}

	file, err := decodeRuleFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRuleSet(file)
}

func decodeRuleFile(data []byte, ext string) (RuleFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file RuleFile
		if err := d.fn(data, &file); err != nil {
			lastErr = fmt.Errorf("decode %s keywords: %w", d.name, err)
			continue
		}
		return file, nil
	}
	if lastErr != nil {
		return RuleFile{}, lastErr
	}
	return RuleFile{}, errors.New("keywords file format not recognized (expected YAML or JSON)")
}

// IsRisky reports whether ticker needs disambiguation.
func (rs *RuleSet) IsRisky(ticker string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.rules[ticker]
	return ok
}

// RiskyTickers returns the configured risky tickers, sorted.
func (rs *RuleSet) RiskyTickers() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, 0, len(rs.rules))
	for t := range rs.rules {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
