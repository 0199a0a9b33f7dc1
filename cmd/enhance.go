/*
Copyright © 2025 fernicar

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/detector"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/orchestrator"
)

var (
	enhanceInput  string
	enhanceOutput string
	enhanceLang   string
	enhanceColumn int
	enhanceHeader bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Enhance every prompt in a file",
	Long: `Read newline-delimited prompts from a file and rewrite each one into a
richly detailed text-to-image prompt. Blank lines are skipped. With
--column the prompts are read from one column of a CSV file instead.

Results are written one per line, in input order, to --output or stdout.
A prompt whose generation fails yields an error marker line; the batch
continues with the next prompt.

Languages:
  en    English, 225-300 words
  zh    Chinese, 100-200 characters
  auto  detect from the input prompts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if enhanceOutput != "" && enhanceInput == enhanceOutput {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		seeds, err := readSeeds(enhanceInput, enhanceColumn, enhanceHeader)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			return orchestrator.ErrNoSeeds
		}

		det := detector.New()
		lang, err := resolveLanguage(enhanceLang, seeds, det)
		if err != nil {
			return err
		}
		if isAuto(enhanceLang) {
			fmt.Fprintf(os.Stderr, "Detected language: %s\n", lang)
		}

		p, err := buildPipeline(det)
		if err != nil {
			return err
		}
		defer p.Close()

		return runBatch(cmd.Context(), p, orchestrator.Batch{
			Seeds:    seeds,
			Model:    cfg.Model,
			Mode:     internal.Enhance,
			Language: lang,
		}, enhanceOutput)
	},
}

// readSeeds loads seeds from a text file, or from one CSV column when
// column is not negative.
func readSeeds(path string, column int, header bool) ([]string, error) {
	if column < 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return orchestrator.SeedsFromText(string(data)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input CSV: %w", err)
	}
	defer f.Close()
	return orchestrator.SeedsFromCSV(f, column, header)
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().StringVarP(&enhanceInput, "input", "i", "", "Input file with one prompt per line (required)")
	enhanceCmd.Flags().StringVarP(&enhanceOutput, "output", "o", "", "Output file (default stdout)")
	enhanceCmd.Flags().StringVarP(&enhanceLang, "lang", "l", "en", "Output language: en, zh or auto")

	enhanceCmd.Flags().IntVar(&enhanceColumn, "column", -1, "Read prompts from this 0-indexed CSV column instead of lines")
	enhanceCmd.Flags().BoolVar(&enhanceHeader, "header", false, "Skip the first CSV row")

	enhanceCmd.MarkFlagRequired("input")
}
