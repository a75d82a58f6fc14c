package extractor

import (
	"unicode"

	"github.com/standardbeagle/lexmatch/internal/types"
)

// Tokenize splits text on whitespace. Offsets count runes, so they line up
// with character offsets produced by upstream tokenizers.
func Tokenize(text string) []types.Token {
	var tokens []types.Token
	start := -1
	var buf []rune
	pos := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, types.Token{Text: string(buf), Start: start, End: pos})
				start, buf = -1, buf[:0]
			}
		} else {
			if start < 0 {
				start = pos
			}
			buf = append(buf, r)
		}
		pos++
	}
	if start >= 0 {
		tokens = append(tokens, types.Token{Text: string(buf), Start: start, End: pos})
	}
	return tokens
}
