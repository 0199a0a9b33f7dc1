package internal

import (
	"fmt"
	"strings"
	"time"
)

// Language selects the output language of a generated prompt and, with it,
// the unit prompts are measured in.
type Language int

const (
	English Language = iota
	Chinese
)

func (l Language) String() string {
	switch l {
	case English:
		return "en"
	case Chinese:
		return "zh"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// ParseLanguage accepts ISO codes and English names, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english":
		return English, nil
	case "zh", "cn", "zho", "chinese":
		return Chinese, nil
	default:
		return English, fmt.Errorf("unknown language %q", s)
	}
}

// Mode selects which system prompt drives generation.
type Mode int

const (
	// Enhance rewrites and elaborates an existing prompt.
	Enhance Mode = iota
	// Vary produces a novel prompt sharing only the seed's essential subject.
	Vary
)

func (m Mode) String() string {
	switch m {
	case Enhance:
		return "enhance"
	case Vary:
		return "vary"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enhance", "enhancement":
		return Enhance, nil
	case "vary", "variation", "generate", "generation":
		return Vary, nil
	default:
		return Enhance, fmt.Errorf("unknown mode %q", s)
	}
}

// BatchRecord is the persisted header of one batch run.
type BatchRecord struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Language  string    `json:"language"`
	Model     string    `json:"model"`
	SeedCount int       `json:"seed_count"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultRecord is the persisted outcome for one seed of a batch.
type ResultRecord struct {
	BatchID  string `json:"batch_id"`
	Seq      int    `json:"seq"`
	Seed     string `json:"seed"`
	Text     string `json:"text"`
	Metric   int    `json:"metric"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}
