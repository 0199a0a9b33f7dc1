package orchestrator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// SeedsFromText splits newline-delimited text into seeds, trimming each line
// and dropping blank ones.
func SeedsFromText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var seeds []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			seeds = append(seeds, line)
		}
	}
	return seeds
}

// SeedsFromTheme repeats theme count times, one seed per requested variation.
func SeedsFromTheme(theme string, count int) ([]string, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, ErrEmptyTheme
	}
	if count < 1 || count > MaxCount {
		return nil, ErrInvalidCount
	}
	seeds := make([]string, count)
	for i := range seeds {
		seeds[i] = theme
	}
	return seeds, nil
}

// SeedsFromCSV reads seeds from one 0-indexed column of CSV data. Rows too
// short to have the column and blank cells are skipped; header drops the
// first row.
func SeedsFromCSV(r io.Reader, column int, header bool) ([]string, error) {
	if column < 0 {
		return nil, fmt.Errorf("invalid column %d", column)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if header && len(records) > 0 {
		records = records[1:]
	}

	var seeds []string
	for _, rec := range records {
		if column >= len(rec) {
			continue
		}
		if cell := strings.TrimSpace(rec[column]); cell != "" {
			seeds = append(seeds, cell)
		}
	}
	return seeds, nil
}
