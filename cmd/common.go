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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/detector"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/generator"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/metrics"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/ollama"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/orchestrator"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/store"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/validator"
)

// pipeline bundles everything one batch run needs.
type pipeline struct {
	orch      *orchestrator.Orchestrator
	collector *metrics.Collector
	db        *store.Store
}

func (p *pipeline) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func newClient() *ollama.Client {
	return ollama.NewClient(cfg.OllamaURL, cfg.Timeout, logger)
}

// buildPipeline wires the client, both language generators, the validator,
// the metrics collector and, unless disabled, the history store.
func buildPipeline(det *detector.Detector) (*pipeline, error) {
	client := newClient()
	collector := metrics.NewCollector(metrics.DefaultNamespace, logger)

	drivers := make(map[internal.Language]orchestrator.Driver, 2)
	for _, lang := range []internal.Language{internal.English, internal.Chinese} {
		profile, err := generator.ProfileFor(lang)
		if err != nil {
			return nil, err
		}
		g := generator.New(profile, client, logger)
		g.SetRecorder(collector)
		g.SetMaxAttempts(cfg.MaxAttempts)
		drivers[lang] = g
	}

	orch := orchestrator.New(drivers, orchestrator.OrchestratorConfig{SkipValidation: true}, logger)
	if det == nil {
		det = detector.New()
	}
	orch.SetValidator(validator.NewWithDetector(det))
	orch.SetRecorder(collector)

	p := &pipeline{orch: orch, collector: collector}

	if !cfg.NoHistory && cfg.DB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := store.New(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		p.db = db
		orch.SetHistory(db)
	}
	return p, nil
}

// resolveLanguage parses --lang. "auto" picks the language most seeds are
// written in and falls back to English.
func resolveLanguage(name string, seeds []string, det *detector.Detector) (internal.Language, error) {
	if !isAuto(name) {
		return internal.ParseLanguage(name)
	}

	var en, zh int
	for _, s := range seeds {
		lang, ok := det.Detect(s)
		if !ok {
			continue
		}
		if lang == internal.Chinese {
			zh++
		} else {
			en++
		}
	}
	if zh > en {
		return internal.Chinese, nil
	}
	return internal.English, nil
}

func isAuto(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "auto")
}

// runBatch executes b, prints progress to stderr and writes one result per
// line to outputFile, or stdout when outputFile is empty.
func runBatch(ctx context.Context, p *pipeline, b orchestrator.Batch, outputFile string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.orch.SetListener(func(e orchestrator.Event) {
		switch e.Kind {
		case orchestrator.EventProgress:
			fmt.Fprintf(os.Stderr, "Processing prompt %d/%d...\n", e.Index+1, e.Total)
		case orchestrator.EventResult:
			fmt.Fprintf(os.Stderr, "  %s, %d %s, %d attempt(s)\n",
				e.Result.Outcome, e.Result.Metric, unitName(b.Language), e.Result.Attempts)
		}
	})

	result, runErr := p.orch.Run(ctx, b)
	if result == nil {
		return runErr
	}

	if err := writeOutput(outputFile, result.Results); err != nil {
		return err
	}
	writeMetrics(p.collector)

	fmt.Fprintf(os.Stderr, "Batch %s: %d succeeded, %d failed", result.ID, result.Succeeded, result.Failed)
	if result.Mismatched > 0 {
		fmt.Fprintf(os.Stderr, ", %d not in %s", result.Mismatched, b.Language)
	}
	fmt.Fprintln(os.Stderr)
	if outputFile != "" {
		fmt.Printf("Wrote %d prompts to %s\n", len(result.Results), outputFile)
	}
	return runErr
}

func writeOutput(outputFile string, results []generator.Result) error {
	if outputFile == "" {
		return writeResults(os.Stdout, results)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeResults(f, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// writeResults writes each result's text on its own line, in seed order.
func writeResults(w io.Writer, results []generator.Result) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, r.Text); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	return nil
}

func writeMetrics(c *metrics.Collector) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := c.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("metrics not written", zap.Error(err))
	}
}

func unitName(lang internal.Language) string {
	if lang == internal.Chinese {
		return "chars"
	}
	return "words"
}
