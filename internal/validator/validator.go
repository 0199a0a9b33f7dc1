// Package validator checks that a generated prompt is in the requested
// output language.
package validator

import (
	"fmt"
	"strings"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// Validator checks that generated text is written in the expected language.
// The underlying language detector is expensive to build; reuse the instance.
type Validator struct {
	det *detector.Detector
}

func New() *Validator {
	return &Validator{det: detector.New()}
}

// NewWithDetector shares an already built detector.
func NewWithDetector(d *detector.Detector) *Validator {
	return &Validator{det: d}
}

// IsValid returns true when text appears to be written in want.
//
// Short texts (fewer than minValidationLength runes) and texts whose language
// cannot be determined pass without error. When the detected language differs
// from want the returned error names both codes.
func (v *Validator) IsValid(text string, want internal.Language) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("prompt is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.Detect(text)
	if !ok {
		return true, nil
	}

	if detected != want {
		return false, fmt.Errorf("expected %s but detected %s", want, detected)
	}

	return true, nil
}
