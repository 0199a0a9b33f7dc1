// Package config loads dragons settings from defaults, an optional YAML
// file, DRAGONS_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "DRAGONS"
	ConfigName = "dragons"
)

type Config struct {
	OllamaURL   string        `mapstructure:"ollama_url" json:"ollama_url"`
	Model       string        `mapstructure:"model" json:"model"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
	DB          string        `mapstructure:"db" json:"db"`
	NoHistory   bool          `mapstructure:"no_history" json:"no_history"`
	LogLevel    string        `mapstructure:"log_level" json:"log_level"`
	LogFormat   string        `mapstructure:"log_format" json:"log_format"`
	MetricsFile string        `mapstructure:"metrics_file" json:"metrics_file"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("model", "gemma3:27b")
	v.SetDefault("timeout", 120*time.Second)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("db", "./data/dragons.db")
	v.SetDefault("no_history", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_file", "")
}

// Load reads configuration into v and decodes it. configFile, when set,
// must exist; otherwise dragons.yaml is looked up in the working directory
// and $HOME/.config/dragons and is optional.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.OllamaURL) == "" {
		return errors.New("ollama_url must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
