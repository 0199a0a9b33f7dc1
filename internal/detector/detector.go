// Package detector identifies whether a seed or generated prompt is written
// in English or Chinese.
package detector

import (
	lingua "github.com/pemistahl/lingua-go"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
)

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector restricted to the two output languages. Building it
// loads language models; reuse the instance.
func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Chinese).
		Build()

	return &Detector{detector: detector}
}

// Detect reports the language of text. ok is false for empty text or text
// with no letters to judge by.
func (d *Detector) Detect(text string) (internal.Language, bool) {
	if text == "" {
		return internal.English, false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return internal.English, false
	}
	switch lang {
	case lingua.Chinese:
		return internal.Chinese, true
	case lingua.English:
		return internal.English, true
	default:
		return internal.English, false
	}
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.String(), true
}
