package card

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	ligatures    = strings.NewReplacer("Æ", "Ae", "æ", "ae", "Œ", "Oe", "œ", "oe")
)

// Slug lowercases text, strips diacritics and joins alphanumeric runs with "-".
func Slug(text string) string {
	folded := ligatures.Replace(text)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, folded); err == nil {
		folded = stripped
	}
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(folded), "-"), "-")
	if slug == "" {
		return "card"
	}
	return slug
}

// NormalizeSetCode returns the lowercase form used in ids, URLs and filenames.
func NormalizeSetCode(set string) string {
	return strings.ToLower(strings.TrimSpace(set))
}

// NormalizeCollector returns the filesystem-safe form of a collector number.
func NormalizeCollector(number string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(number)), "/", "-")
}

// ID derives the stable dataset identity of a printing.
func ID(setCode, collectorNumber, englishName string) string {
	parts := make([]string, 0, 3)
	if set := NormalizeSetCode(setCode); set != "" {
		parts = append(parts, set)
	}
	if number := NormalizeCollector(collectorNumber); number != "" {
		parts = append(parts, number)
	}
	parts = append(parts, Slug(englishName))
	return strings.Join(parts, "-")
}

// NormalizeTags trims, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// UnionTags returns the normalized union of both tag sets.
func UnionTags(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return NormalizeTags(all)
}
