package generator

import (
	"strings"
	"unicode"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/measure"
)

// Policy holds the length and completeness bounds a candidate is judged by.
type Policy struct {
	Language internal.Language
	// StrictMin..Max is the band accepted on any attempt.
	StrictMin int
	Max       int
	// LenientMin is accepted only after at least one retry.
	LenientMin int
	// Terminators are the sentence-final runes that mark a complete prompt.
	Terminators       string
	DefaultTerminator string
}

var (
	EnglishPolicy = Policy{
		Language:          internal.English,
		StrictMin:         225,
		Max:               300,
		LenientMin:        150,
		Terminators:       ".!?",
		DefaultTerminator: ".",
	}

	ChinesePolicy = Policy{
		Language:          internal.Chinese,
		StrictMin:         100,
		Max:               200,
		LenientMin:        80,
		Terminators:       "。！？.!?",
		DefaultTerminator: "。",
	}
)

// Measure returns the word count for English and the non-space character
// count for Chinese.
func (p Policy) Measure(text string) int {
	if p.Language == internal.Chinese {
		return measure.Chars(text)
	}
	return measure.Words(text)
}

func (p Policy) Complete(text string) bool {
	return measure.EndsWithAny(text, p.Terminators)
}

// Terminate appends the default terminator to text.
func (p Policy) Terminate(text string) string {
	return strings.TrimRightFunc(text, unicode.IsSpace) + p.DefaultTerminator
}

// Truncate cuts text to exactly Max units ending in a terminator. English
// cuts on word boundaries and the terminator attaches to the last word.
// Chinese cuts raw characters and gives up the last one to the terminator
// when needed, so the result still measures Max.
func (p Policy) Truncate(text string) string {
	if p.Language == internal.Chinese {
		cut := measure.TruncateChars(text, p.Max)
		if p.Complete(cut) {
			return cut
		}
		return p.Terminate(measure.TruncateChars(text, p.Max-1))
	}

	cut := measure.TruncateWords(text, p.Max)
	if p.Complete(cut) {
		return cut
	}
	return p.Terminate(cut)
}
