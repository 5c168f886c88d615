package halink

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRegexp = regexp.MustCompile(`\s+`)
	invalidRegexp    = regexp.MustCompile(`[^a-z0-9_]+`)
	underscoreRegexp = regexp.MustCompile(`_+`)

	accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeKey turns any display name into a safe entity/config key:
// lowercase, accents stripped, whitespace collapsed to single underscores,
// everything outside [a-z0-9_] removed. The operation is idempotent.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if stripped, _, err := transform.String(accentStripper, k); err == nil {
		k = stripped
	}
	k = whitespaceRegexp.ReplaceAllString(k, "_")
	k = invalidRegexp.ReplaceAllString(k, "")
	k = underscoreRegexp.ReplaceAllString(k, "_")
	return k
}

// NormalizeFriendlyName keeps the display name as-is, trimmed.
func NormalizeFriendlyName(name string) string {
	return strings.TrimSpace(name)
}

// ParseSetLight splits a light mode "key=value" frame. The returned key is
// normalized; a frame without '=' yields two empty strings.
func ParseSetLight(text string) (string, string) {
	text = strings.TrimSuffix(text, "\x00")
	key, value, found := strings.Cut(text, "=")
	if !found {
		return "", ""
	}
	return NormalizeKey(key), value
}
