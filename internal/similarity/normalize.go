package similarity

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer transforms a member or query before gram extraction.
type Normalizer func(string) string

// stripAccents returns a fresh chain; transformers carry state and are not
// safe for concurrent use.
func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func normalizeNone(s string) string {
	return s
}

func normalizeLower(s string) string {
	return strings.ToLower(s)
}

// normalizeFold lower-cases and strips accents (Élodie -> elodie).
func normalizeFold(s string) string {
	result, _, err := transform.String(stripAccents(), strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return result
}

// normalizeStem folds, then stems every whitespace separated word.
func normalizeStem(s string) string {
	words := strings.Fields(normalizeFold(s))
	if len(words) == 0 {
		return normalizeFold(s)
	}
	for i, w := range words {
		words[i] = porter2.Stem(w)
	}
	return strings.Join(words, " ")
}

// NormalizerFor returns the normalizer for the given mode.
// Unknown modes fall back to NormalizeNone.
func NormalizerFor(mode Normalization) Normalizer {
	switch mode {
	case NormalizeLower:
		return normalizeLower
	case NormalizeFold:
		return normalizeFold
	case NormalizeStem:
		return normalizeStem
	default:
		return normalizeNone
	}
}
