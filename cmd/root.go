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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/config"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/logging"
)

var version = "0.3.0"

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "dragons",
	Short: "Text-to-image prompt enhancer driven by a local Ollama model",
	Long: `Turn short text-to-image prompt seeds into polished, richly detailed
prompts using a locally hosted Ollama server.

English prompts are kept between 225 and 300 words, Chinese prompts between
100 and 200 characters. Seeds are processed one at a time, in order.

Use "dragons enhance --help" or "dragons generate --help" for details.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		logger = l
		logger.Debug("configuration loaded",
			zap.String("config_file", v.ConfigFileUsed()),
			zap.String("ollama_url", cfg.OllamaURL),
			zap.String("model", cfg.Model))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./dragons.yaml or $HOME/.config/dragons/dragons.yaml)")
	flags.String("ollama-url", "http://localhost:11434", "Ollama base URL")
	flags.StringP("model", "m", "gemma3:27b", "Model used for generation")
	flags.Duration("timeout", 120*time.Second, "Timeout per generation request")
	flags.Int("max-attempts", 3, "Generation attempts per seed")
	flags.String("db", "./data/dragons.db", "Database path for run history")
	flags.Bool("no-history", false, "Do not record runs in the history database")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after each run")

	for key, flag := range map[string]string{
		"ollama_url":   "ollama-url",
		"model":        "model",
		"timeout":      "timeout",
		"max_attempts": "max-attempts",
		"db":           "db",
		"no_history":   "no-history",
		"log_level":    "log-level",
		"log_format":   "log-format",
		"metrics_file": "metrics-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}
