package relevance

import (
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Decision is the classifier verdict.
type Decision int

const (
	Accept Decision = iota
	Reject
)

func (d Decision) String() string {
	if d == Reject {
		return "reject"
	}
	return "accept"
}

// Explanation carries the verdict together with the terms that drove it.
type Explanation struct {
	Decision Decision
	Risky    bool
	Negative []string
	Positive []string
}

// Classify accepts by default and rejects only when a noise term appears without market context.
func (rs *RuleSet) Classify(ticker, title, summary string) Decision {
	return rs.Explain(ticker, title, summary).Decision
}

// Explain is Classify plus the matched terms.
func (rs *RuleSet) Explain(ticker, title, summary string) Explanation {
	if rs == nil {
		return Explanation{Decision: Accept}
	}
	rules, ok := rs.rules[ticker]
	if !ok {
		return Explanation{Decision: Accept}
	}

	text := []byte(normalizeText(title + " " + summary))
	exp := Explanation{Decision: Accept, Risky: true}

	exp.Negative = rules.negative.find(text)
	if len(exp.Negative) == 0 {
		return exp
	}

	// Any single positive term keeps the article, even when several negatives match.
	exp.Positive = rules.positive.find(text)
	if len(exp.Positive) > 0 {
		return exp
	}

	exp.Decision = Reject
	return exp
}

// normalizeText folds diacritics, lowercases, maps every non alphanumeric rune to a
// space and prefixes a space so that terms (normalized the same way) only match at word starts.
func normalizeText(text string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, text); err == nil {
		text = folded
	}
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text) + 1)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return b.String()
}

// Holder publishes a RuleSet that can be replaced as a whole while classification runs.
type Holder struct {
	current atomic.Pointer[RuleSet]
}

// NewHolder returns a holder serving rs.
func NewHolder(rs *RuleSet) *Holder {
	h := &Holder{}
	h.current.Store(rs)
	return h
}

// Load returns the active rule set snapshot.
func (h *Holder) Load() *RuleSet {
	return h.current.Load()
}

// Replace swaps in a new rule set and returns the previous one.
func (h *Holder) Replace(rs *RuleSet) *RuleSet {
	return h.current.Swap(rs)
}

// Classify classifies against a single snapshot of the active rules.
func (h *Holder) Classify(ticker, title, summary string) Decision {
	return h.Load().Classify(ticker, title, summary)
}

// Explain explains against a single snapshot of the active rules.
func (h *Holder) Explain(ticker, title, summary string) Explanation {
	return h.Load().Explain(ticker, title, summary)
}
