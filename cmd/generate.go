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
	"github.com/spf13/cobra"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/detector"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/orchestrator"
)

var (
	generateTheme  string
	generateCount  int
	generateOutput string
	generateLang   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate varied prompts from a theme",
	Long: `Generate --count distinct prompts that share only the essential subject
of --theme. Each variation is generated independently, one after another.

Example:
  dragons generate --theme "dragon in a storm" --count 5 -o storm.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seeds, err := orchestrator.SeedsFromTheme(generateTheme, generateCount)
		if err != nil {
			return err
		}

		det := detector.New()
		lang, err := resolveLanguage(generateLang, seeds[:1], det)
		if err != nil {
			return err
		}

		p, err := buildPipeline(det)
		if err != nil {
			return err
		}
		defer p.Close()

		return runBatch(cmd.Context(), p, orchestrator.Batch{
			Seeds:    seeds,
			Model:    cfg.Model,
			Mode:     internal.Vary,
			Language: lang,
		}, generateOutput)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateTheme, "theme", "t", "", "Theme every variation is built around (required)")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 5, "Number of variations, 1-1000")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file (default stdout)")
	generateCmd.Flags().StringVarP(&generateLang, "lang", "l", "en", "Output language: en, zh or auto")

	generateCmd.MarkFlagRequired("theme")
}
