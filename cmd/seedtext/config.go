package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/seedtext/internal/inference"
)

// Config represents the seedtext configuration file (~/.config/seedtext/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelDir  string `yaml:"model_dir"`
	ModelsDir string `yaml:"models_dir"`

	// Generation defaults
	Words       *int     `yaml:"words"`
	MaxWords    *int     `yaml:"max_words"`
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string   `yaml:"server_address"`
	RateLimit     *float64 `yaml:"rate_limit"`
	RateBurst     *int     `yaml:"rate_burst"`
	HistorySize   *int     `yaml:"history_size"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "seedtext", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// GenDefaults returns the configured generation fallbacks.
func (c Config) GenDefaults() inference.GenDefaults {
	return inference.GenDefaults{
		Words:       c.Words,
		Temperature: c.Temperature,
		Seed:        c.Seed,
	}
}

// Limits returns the configured request limits.
func (c Config) Limits() inference.Limits {
	limits := inference.DefaultLimits()
	if c.MaxWords != nil && *c.MaxWords > 0 {
		limits.MaxWords = *c.MaxWords
	}
	return limits
}

// applyModelConfig applies config file model locations when the
// corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelDir != "" && !c.IsSet("model-dir") {
		modelDir = cfg.ModelDir
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, opts *serveOptions) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		opts.addr = cfg.ServerAddress
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		opts.rateLimit = *cfg.RateLimit
	}
	if cfg.RateBurst != nil && !c.IsSet("rate-burst") {
		opts.rateBurst = *cfg.RateBurst
	}
	if cfg.HistorySize != nil && !c.IsSet("history-size") {
		opts.historySize = *cfg.HistorySize
	}
	if cfg.MaxWords != nil && !c.IsSet("max-words") {
		opts.maxWords = *cfg.MaxWords
	}
}
