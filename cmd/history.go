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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/store"
)

var (
	historyLimit      int
	historySimilarity float64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past batch runs",
	Long:  `List, inspect, search and clear the SQLite run history.`,
}

func openHistory() (*store.Store, error) {
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListBatches(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list batches: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No batches in history.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tMODE\tLANG\tMODEL\tSEEDS\tDONE\tFAILED\tSTATUS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Mode, e.Language,
				e.Model, e.SeedCount, e.Results, e.Failed, e.Status)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the results of one batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.GetResults(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load batch: %w", err)
		}
		printResults(results)
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <seed>",
	Short: "Find past results for a seed",
	Long: `Find past results generated from the given seed. With --similarity
below 1, seeds within that normalised edit-distance similarity also match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		var results []internal.ResultRecord
		if historySimilarity >= 1 {
			results, err = db.FindBySeed(ctx, args[0])
		} else {
			results, err = db.FindSimilarSeeds(ctx, args[0], historySimilarity)
		}
		if err != nil {
			return fmt.Errorf("failed to search history: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No matching results.")
			return nil
		}
		printResults(results)
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Batches:   %d\n", stats.Batches)
		fmt.Printf("Results:   %d\n", stats.Results)
		fmt.Printf("Accepted:  %d\n", stats.Accepted)
		fmt.Printf("Truncated: %d\n", stats.Truncated)
		fmt.Printf("Exhausted: %d\n", stats.Exhausted)
		fmt.Printf("Failed:    %d\n", stats.Failed)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a batch and its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteBatch(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete batch: %w", err)
		}
		fmt.Printf("Deleted batch: %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all batches from history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d batches from history.\n", n)
		return nil
	},
}

func printResults(results []internal.ResultRecord) {
	for _, r := range results {
		fmt.Printf("#%d [%s, metric %d, %d attempt(s)] %s\n", r.Seq+1, r.Outcome, r.Metric, r.Attempts, r.Seed)
		if r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
		fmt.Printf("  %s\n\n", r.Text)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of batches to list (0 = all)")
	historySearchCmd.Flags().Float64Var(&historySimilarity, "similarity", 1, "Minimum seed similarity, 0-1 (1 = exact match)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}
