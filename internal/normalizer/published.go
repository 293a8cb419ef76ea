// Package normalizer turns site-native "published" strings into absolute UTC timestamps.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Adda-Baaj/berita-emiten/pkg/providers"
)

// ErrNormalization is returned when a timestamp string cannot be understood.
var ErrNormalization = errors.New("unparsable published time")

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

var unitDurations = map[string]time.Duration{
	"detik": time.Second, "second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second,
	"menit": time.Minute, "minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"jam": time.Hour, "hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hari": day, "day": day, "days": day,
	"minggu": 7 * day, "week": 7 * day, "weeks": 7 * day,
	"bulan": month, "month": month, "months": month,
	"tahun": year, "year": year, "years": year,
}

var monthNames = map[string]time.Month{
	"januari": time.January, "january": time.January, "jan": time.January,
	"februari": time.February, "february": time.February, "feb": time.February, "peb": time.February,
	"maret": time.March, "march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"mei": time.May, "may": time.May,
	"juni": time.June, "june": time.June, "jun": time.June,
	"juli": time.July, "july": time.July, "jul": time.July,
	"agustus": time.August, "august": time.August, "agu": time.August, "agt": time.August, "ags": time.August, "agus": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "october": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November, "nop": time.November,
	"desember": time.December, "december": time.December, "des": time.December, "dec": time.December,
}

var zones = map[string]*time.Location{
	"wib":  providers.WIB,
	"wita": providers.WITA,
	"wit":  providers.WIT,
}

var (
	zonePattern     = regexp.MustCompile(`\b(wita|wib|wit)\b\.?`)
	relativePattern = regexp.MustCompile(`((?:\d+\s*[a-z]+[\s,]+(?:dan\s+|and\s+)?)+)(?:yang\s+)?(?:lalu|ago)\b`)
	relativePart    = regexp.MustCompile(`(\d+)\s*([a-z]+)`)
	namedPattern    = regexp.MustCompile(`(\d{1,2})\s+([a-z]+)\.?\s+(\d{4})(?:\s*,?\s*(?:pukul\s+|jam\s+)?(\d{1,2})[:.](\d{2})(?:[:.](\d{2}))?)?`)
	numericPattern  = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})(?:\s*,?\s*(?:pukul\s+|jam\s+)?(\d{1,2})[:.](\d{2})(?:[:.](\d{2}))?)?`)
	isoPattern      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})(?:[t\s](\d{2}):(\d{2})(?::(\d{2}))?)?`)
)

// TimeNormalizer parses absolute and relative published strings. It never reads the wall clock.
type TimeNormalizer struct {
	loc *time.Location
}

// NewTimeNormalizer creates a normalizer that interprets zone-less timestamps in loc.
func NewTimeNormalizer(loc *time.Location) *TimeNormalizer {
	if loc == nil {
		loc = providers.WIB
	}
	return &TimeNormalizer{loc: loc}
}

// Normalize converts raw into an absolute UTC time; relative forms are computed from ref.
func (n *TimeNormalizer) Normalize(raw string, ref time.Time) (time.Time, error) {
	return n.NormalizeIn(raw, ref, n.loc)
}

// NormalizeIn is Normalize with an explicit site zone for strings that carry no zone suffix.
func (n *TimeNormalizer) NormalizeIn(raw string, ref time.Time, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrNormalization)
	}
	if loc == nil {
		loc = n.loc
	}

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC(), nil
	}

	text := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(trimmed), "|", " ")), " ")

	if t, ok := parseRelative(text, ref); ok {
		return t.UTC(), nil
	}

	if m := zonePattern.FindStringSubmatch(text); m != nil {
		loc = zones[m[1]]
		text = strings.TrimSpace(zonePattern.ReplaceAllString(text, " "))
	}

	if t, ok := parseAbsolute(text, loc); ok {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrNormalization, raw)
}

func parseRelative(text string, ref time.Time) (time.Time, bool) {
	if strings.Contains(text, "baru saja") || strings.Contains(text, "just now") {
		return ref, true
	}

	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	// Compound phrases such as "1 jam 30 menit yang lalu" add up.
	var total time.Duration
	for _, part := range relativePart.FindAllStringSubmatch(m[1], -1) {
		unit, ok := unitDurations[part[2]]
		if !ok {
			return time.Time{}, false
		}
		val, err := strconv.ParseInt(part[1], 10, 64)
		if err != nil || val > int64(math.MaxInt64/unit) {
			return time.Time{}, false
		}
		d := time.Duration(val) * unit
		if total > math.MaxInt64-d {
			return time.Time{}, false
		}
		total += d
	}

	t := ref.Add(-total)
	if t.After(ref) {
		return time.Time{}, false
	}
	return t, true
}

func parseAbsolute(text string, loc *time.Location) (time.Time, bool) {
	if m := namedPattern.FindStringSubmatch(text); m != nil {
		mon, ok := monthNames[m[2]]
		if !ok {
			return time.Time{}, false
		}
		return build(m[3], int(mon), m[1], m[4], m[5], m[6], loc)
	}
	if m := isoPattern.FindStringSubmatch(text); m != nil {
		mon, _ := strconv.Atoi(m[2])
		return build(m[1], mon, m[3], m[4], m[5], m[6], loc)
	}
	if m := numericPattern.FindStringSubmatch(text); m != nil {
		mon, _ := strconv.Atoi(m[2])
		return build(m[3], mon, m[1], m[4], m[5], m[6], loc)
	}
	return time.Time{}, false
}

// build assembles a time and rejects calendar overflow such as 31 February.
func build(yearStr string, mon int, dayStr, hourStr, minStr, secStr string, loc *time.Location) (time.Time, bool) {
	y, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	hh, mm, ss := atoiOrZero(hourStr), atoiOrZero(minStr), atoiOrZero(secStr)
	if mon < 1 || mon > 12 || hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(mon), d, hh, mm, ss, 0, loc)
	if t.Day() != d || int(t.Month()) != mon {
		return time.Time{}, false
	}
	return t, true
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
