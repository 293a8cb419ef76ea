// Package fingerprint computes the content hash used as the uniqueness key of stored news.
// The key combines the normalized title with the canonical URL, so two sites sharing a
// generic headline stay distinct while cosmetic body edits never change the hash.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

// trackingParams lists query parameters stripped during canonicalization.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyURL            = errors.New("canonical url: empty input")
	errMissingSchemeOrHost = errors.New("canonical url: missing scheme or host")
)

// Set holds already persisted fingerprints.
type Set map[string]struct{}

// NewSet builds a Set from a list of fingerprints.
func NewSet(fps ...string) Set {
	s := make(Set, len(fps))
	for _, fp := range fps {
		s[fp] = struct{}{}
	}
	return s
}

// IsDuplicate reports whether fp is already present in existing.
func IsDuplicate(fp string, existing Set) bool {
	_, ok := existing[fp]
	return ok
}

// Fingerprint returns the 64 character SHA-256 hex digest of the title and canonical url.
func Fingerprint(title, rawURL string) string {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		canonical = strings.TrimSpace(rawURL)
	}
	sum := sha256.Sum256([]byte(NormalizeTitle(title) + "\n" + canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases and collapses whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// CanonicalURL strips tracking parameters and cosmetic differences from an article url.
func CanonicalURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonical url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	originalScheme := strings.ToLower(parsed.Scheme)
	parsed.Scheme = "https"
	parsed.Host = normalizeHost(parsed, originalScheme)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	parsed.RawQuery = cleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)
	parsed.RawPath = ""

	return parsed.String(), nil
}

func normalizeHost(u *url.URL, originalScheme string) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		return hostname
	}
	for _, scheme := range []string{originalScheme, u.Scheme} {
		if def, ok := defaultPorts[scheme]; ok && port == def {
			return hostname
		}
	}
	return hostname + ":" + port
}

func isTracking(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingParams[k]
	return ok
}

// cleanQuery drops tracking parameters and sorts what remains.
func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if !isTracking(key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimRight(path.Clean(p), "/")
}

// ForArticle fingerprints a raw article by its title and url.
func ForArticle(a domain.RawArticle) string {
	return Fingerprint(a.Title, a.URL)
}
