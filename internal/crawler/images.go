package crawler

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

// lazyAttrs are checked before the plain src, in this order.
var lazyAttrs = []string{
	"data-src",
	"data-lazy-src",
	"data-lazy",
	"data-original",
	"data-srcset",
	"srcset",
}

var placeholderTokens = []string{
	"placeholder",
	"blank",
	"loading",
	"loader",
	"spinner",
	"spacer",
	"transparent",
	"lazy-load",
	"no-image",
	"noimage",
}

// tinyDimensions matches a separator delimited NxM token such as 1x1.gif or thumb-16x16.png.
var tinyDimensions = regexp.MustCompile(`(?:^|[-_.])([0-9]{1,2})x([0-9]{1,2})(?:[-_.]|$)`)

// aspectRatios look like tiny dimensions but label crops of full size images.
var aspectRatios = map[string]struct{}{
	"16x9": {}, "9x16": {}, "4x3": {}, "3x4": {}, "3x2": {}, "2x3": {},
	"21x9": {}, "5x4": {}, "4x5": {},
}

// SelectImage picks the real article image among lazy-load placeholders.
// The boolean is false when no candidate survives filtering.
func SelectImage(candidates []domain.ImageCandidate) (string, bool) {
	for _, c := range candidates {
		for _, val := range candidateValues(c) {
			if isPlaceholder(val) {
				continue
			}
			if abs, ok := absoluteURL(val); ok {
				return abs, true
			}
		}
	}
	return "", false
}

// candidateValues lists the usable values of one candidate in preference order.
func candidateValues(c domain.ImageCandidate) []string {
	out := make([]string, 0, len(lazyAttrs)+2)
	for _, attr := range lazyAttrs {
		val := strings.TrimSpace(attrValue(c.Attrs, attr))
		if val == "" {
			continue
		}
		if strings.HasSuffix(attr, "srcset") {
			if best := widestSrcset(val); best != "" {
				out = append(out, best)
			}
			continue
		}
		out = append(out, val)
	}
	if src := strings.TrimSpace(attrValue(c.Attrs, "src")); src != "" {
		out = append(out, src)
	}
	if u := strings.TrimSpace(c.URL); u != "" {
		out = append(out, u)
	}
	return out
}

func attrValue(attrs map[string]string, key string) string {
	if v, ok := attrs[key]; ok {
		return v
	}
	for k, v := range attrs {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// widestSrcset returns the srcset entry with the largest width or density descriptor.
func widestSrcset(srcset string) string {
	var (
		best      string
		bestScore float64 = -1
	)
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		score := 0.0
		if len(fields) > 1 {
			desc := strings.ToLower(fields[len(fields)-1])
			if n, err := strconv.ParseFloat(strings.TrimRight(desc, "wx"), 64); err == nil {
				score = n
			}
		}
		if score > bestScore {
			best, bestScore = fields[0], score
		}
	}
	return best
}

func isPlaceholder(val string) bool {
	lower := strings.ToLower(strings.TrimSpace(val))
	if strings.HasPrefix(lower, "data:") {
		return true
	}

	name := lower
	if u, err := url.Parse(lower); err == nil && u.Path != "" {
		name = u.Path
	}
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	for _, tok := range placeholderTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	for _, m := range tinyDimensions.FindAllStringSubmatch(name, -1) {
		if _, ok := aspectRatios[m[1]+"x"+m[2]]; !ok {
			return true
		}
	}
	return false
}

func absoluteURL(val string) (string, bool) {
	if strings.HasPrefix(val, "//") {
		val = "https:" + val
	}
	u, err := url.Parse(val)
	if err != nil {
		return "", false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
