package quality

import (
	"regexp"
	"strings"
)

// VariantMarker separates a base identifier from the disambiguation suffix
// data.europa.eu appends when several catalogs publish the same identifier.
const VariantMarker = "~~"

// variantSuffixes are tried, in order, after the bare identifier.
var variantSuffixes = []string{VariantMarker + "1", VariantMarker + "2"}

var hyphenRuns = regexp.MustCompile(`-+`)

// NormalizeIdentifier maps a catalog identifier to the form used by
// data.europa.eu: trimmed, colons replaced by hyphens, hyphen runs collapsed
// and lowercased.
func NormalizeIdentifier(identifier string) string {
	s := strings.TrimSpace(identifier)
	s = strings.ReplaceAll(s, ":", "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

// Candidates returns the ordered external identifiers to probe for
// identifier: the normalized base, then the base with each variant suffix
// unless it already carries the marker. An identifier that normalizes to
// "" has no candidates.
func Candidates(identifier string) []string {
	base := NormalizeIdentifier(identifier)
	if base == "" {
		return nil
	}
	out := []string{base}
	if strings.Contains(base, VariantMarker) {
		return out
	}
	for _, suffix := range variantSuffixes {
		out = append(out, base+suffix)
	}
	return out
}
