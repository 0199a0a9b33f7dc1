// Package postprocess turns raw model output into a single-line candidate
// prompt.
//
// Sanitize runs six phases in order, each on the previous phase's output:
//  1. Trim surrounding whitespace
//  2. Thinking block removal (<think>…</think>)
//  3. Generic tag removal
//  4. Meta-commentary removal ("Thoughts:" / "Summary:" sections)
//  5. Boilerplate lead-in removal (a single leading phrase)
//  6. Whitespace collapse to one line
package postprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
)

// Sanitize cleans raw generated text for the given output language. It never
// fails; the result may be empty.
func Sanitize(raw string, lang internal.Language) string {
	text := strings.TrimSpace(raw)
	text = removeThinkingBlocks(text)
	text = removeTags(text)
	text = removeMetaSections(text)
	text = removeLeadIn(text, lang)
	return strings.Join(strings.Fields(text), " ")
}

// PossiblyTruncated reports short Chinese output that ends on a full stop.
// Such output is kept as is; callers may only log it.
func PossiblyTruncated(text string, lang internal.Language) bool {
	return lang == internal.Chinese &&
		strings.HasSuffix(text, "。") &&
		utf8.RuneCountInString(text) < 50
}

// --- Phase 2: thinking blocks ---

// Case-sensitive; s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

func removeThinkingBlocks(text string) string {
	return thinkingBlockRe.ReplaceAllString(text, "")
}

// --- Phase 3: stray markup ---

var tagRe = regexp.MustCompile(`<[^>]+>`)

func removeTags(text string) string {
	return tagRe.ReplaceAllString(text, "")
}

// --- Phase 4: meta sections ---

// metaSection removes everything from label up to, but not including, the
// earliest following stop label (or the end of the text).
type metaSection struct {
	label string
	stops []string
}

// Order matters: the emphasised forms go first so that the plain labels do
// not match inside them.
var metaSections = []metaSection{
	{"**Thoughts:**", []string{"**Prompt:**", "**Summary:**", "**Final Prompt:**"}},
	{"**Summary:**", []string{"**Prompt:**", "**Final Prompt:**"}},
	{"Thoughts:", []string{"Prompt:", "Summary:", "Final Prompt:"}},
	{"Summary:", []string{"Prompt:", "Final Prompt:"}},
}

func removeMetaSections(text string) string {
	for _, s := range metaSections {
		text = s.strip(text)
	}
	return text
}

// RE2 has no lookahead, so the lazy "up to the next label" span is found by
// scanning for the earliest stop label after each occurrence.
func (s metaSection) strip(text string) string {
	from := 0
	for {
		i := strings.Index(text[from:], s.label)
		if i < 0 {
			return text
		}
		start := from + i
		bodyStart := start + len(s.label)
		end := len(text)
		for _, stop := range s.stops {
			if j := strings.Index(text[bodyStart:], stop); j >= 0 && bodyStart+j < end {
				end = bodyStart + j
			}
		}
		text = text[:start] + text[end:]
		from = start
	}
}

// --- Phase 5: boilerplate lead-ins ---

var englishLeadIns = []string{
	"Here's the enhanced prompt:",
	"Enhanced prompt:",
	"Prompt:",
	"**Prompt:**",
	"**Final Prompt:**",
	"Final Prompt:",
	"The refined prompt is:",
	"Here is the enhanced version:",
	"Enhanced version:",
	"Here's a unique variation:",
	"Unique variation:",
	"Variation:",
}

// Chinese output additionally gets localized lead-ins and stock phrases the
// model tends to open with.
var chineseLeadIns = append(append([]string(nil), englishLeadIns...),
	"以下是增强后的提示词：",
	"增强提示词：",
	"提示词：",
	"改进后的提示词：",
	"这是独特的变体：",
	"变体：",
	"使用哈苏",
	"采用超现实主义数字艺术风格",
	"f/2.8",
	"ISO 100",
)

func leadIns(lang internal.Language) []string {
	if lang == internal.Chinese {
		return chineseLeadIns
	}
	return englishLeadIns
}

// removeLeadIn strips the first listed phrase the text starts with. Only one
// phrase is removed; stacked lead-ins keep the second one.
func removeLeadIn(text string, lang internal.Language) string {
	text = strings.TrimSpace(text)
	for _, phrase := range leadIns(lang) {
		if strings.HasPrefix(text, phrase) {
			return strings.TrimSpace(text[len(phrase):])
		}
	}
	return text
}
