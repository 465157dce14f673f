// Package tokenizer splits text into lowercase alphanumeric tokens. Any rune
// that is not a letter or digit is a separator. There is no stop-word list,
// stemming or length limit, so the same text always yields the same tokens.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// Tokens returns a lazy sequence over the tokens of text. The sequence is a
// pure function of its input and may be ranged over any number of times.
func Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var buf strings.Builder
		for _, r := range text {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				buf.WriteRune(unicode.ToLower(r))
				continue
			}
			if buf.Len() > 0 {
				if !yield(buf.String()) {
					return
				}
				buf.Reset()
			}
		}
		if buf.Len() > 0 {
			yield(buf.String())
		}
	}
}

// Tokenize collects Tokens(text) into a slice.
func Tokenize(text string) []string {
	var out []string
	for tok := range Tokens(text) {
		out = append(out, tok)
	}
	return out
}
