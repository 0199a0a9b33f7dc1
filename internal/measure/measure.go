// Package measure counts and bounds prompt text in the unit each output
// language is judged by: whitespace-separated words for English, non-space
// characters for Chinese. All character work is done on runes.
package measure

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Words returns the number of whitespace-separated words in text.
func Words(text string) int {
	return len(strings.Fields(text))
}

// Chars returns the number of non-space runes in text.
func Chars(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// EndsWithAny reports whether text, ignoring trailing whitespace, ends with
// one of the runes in terminators.
func EndsWithAny(text, terminators string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(terminators, last)
}

// TruncateWords keeps the first n words of text joined by single spaces.
// Text with n or fewer words is returned with its whitespace normalised.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if n < 0 {
		n = 0
	}
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// TruncateChars cuts text right after its n-th non-space rune and trims
// trailing whitespace. Spaces before the cut are kept as they are.
func TruncateChars(text string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		seen++
		if seen == n {
			return strings.TrimRightFunc(text[:i+utf8.RuneLen(r)], unicode.IsSpace)
		}
	}
	return strings.TrimRightFunc(text, unicode.IsSpace)
}
