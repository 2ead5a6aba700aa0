package blog

import (
	"strings"
	"time"
	"unicode"
)

// translit maps the accented letters accepted in titles to their ASCII
// equivalents. Anything not in this map and outside [a-z0-9 -] after
// lowercasing is dropped.
var translit = map[rune]rune{
	'ç': 'c',
	'ğ': 'g',
	'ı': 'i',
	'ö': 'o',
	'ş': 's',
	'ü': 'u',
	'â': 'a',
	'î': 'i',
	'û': 'u',
}

// GenerateFilename derives a post's filename from its creation date and
// title: lowercase, transliterate accented letters, drop unsafe characters,
// collapse whitespace and hyphen runs to single hyphens, trim edge hyphens,
// and prefix the ISO date. The result is deterministic for a given
// (date, title) pair, so two posts with the same title on the same day
// collide.
func GenerateFilename(date time.Time, title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if t, ok := translit[r]; ok {
			r = t
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	slug := b.String()
	// Collapse whitespace to single hyphens.
	slug = strings.Join(strings.Fields(slug), "-")
	// Collapse hyphen runs produced by adjacent dropped characters.
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	return date.Format("2006-01-02") + "-" + slug
}
