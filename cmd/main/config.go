package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/domainfinder/pkg/finder"
	"github.com/CTAG07/domainfinder/pkg/markov"
	"github.com/CTAG07/domainfinder/pkg/whois"
)

// GeneratorConfig holds the settings for building the model and sampling words.
type GeneratorConfig struct {
	Order         int     `json:"order"`
	LexiconPath   string  `json:"lexicon_path"`
	Continuation  float64 `json:"continuation"`
	CompoundLimit int     `json:"compound_limit"`
	MaxSteps      int     `json:"max_steps"`
	MinFreq       int     `json:"min_freq"`
	Seed          uint64  `json:"seed"`
}

// WhoisConfig holds the settings for the availability lookup.
type WhoisConfig struct {
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	Marker    string   `json:"marker"`
	TimeoutMs int      `json:"timeout_ms"`
}

// FinderConfig holds the settings for picking and checking candidates.
type FinderConfig struct {
	Rounds      int    `json:"rounds"`
	TLD         string `json:"tld"`
	MaxFailures int    `json:"max_failures"`
}

// StoreConfig holds the settings for the model database.
type StoreConfig struct {
	UseStore     bool   `json:"use_store"`
	DatabasePath string `json:"database_path"`
	ModelName    string `json:"model_name"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	LogLevel  string           `json:"log_level"`
	Generator *GeneratorConfig `json:"generator_config"`
	Whois     *WhoisConfig     `json:"whois_config"`
	Finder    *FinderConfig    `json:"finder_config"`
	Store     *StoreConfig     `json:"store_config"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	finderDefaults := finder.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Generator: &GeneratorConfig{
			Order:         markov.DefaultOrder,
			LexiconPath:   markov.DefaultLexiconPath,
			Continuation:  0.7,
			CompoundLimit: 8,
			MaxSteps:      512,
		},
		Whois: &WhoisConfig{
			Command:   whois.DefaultCommand,
			Args:      []string{},
			Marker:    whois.DefaultMarker,
			TimeoutMs: int(whois.DefaultTimeout / time.Millisecond),
		},
		Finder: &FinderConfig{
			Rounds:      finderDefaults.Rounds,
			TLD:         finderDefaults.TLD,
			MaxFailures: finderDefaults.MaxFailures,
		},
		Store: &StoreConfig{
			UseStore:     false,
			DatabasePath: "./data/domainfinder.db?_journal_mode=WAL&_busy_timeout=5000",
			ModelName:    "words",
		},
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if errors.Is(err, os.ErrNotExist) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, as the finder can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal the JSON from the file into the config struct.
	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Sections missing from the file keep their defaults.
	defaults := DefaultConfig()
	if config.Generator == nil {
		config.Generator = defaults.Generator
	}
	if config.Whois == nil {
		config.Whois = defaults.Whois
	}
	if config.Finder == nil {
		config.Finder = defaults.Finder
	}
	if config.Store == nil {
		config.Store = defaults.Store
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Generator.Order < 1 {
		return fmt.Errorf("generator_config.order must be at least 1, got %d", c.Generator.Order)
	}
	if c.Generator.MinFreq < 0 {
		return fmt.Errorf("generator_config.min_freq must not be negative, got %d", c.Generator.MinFreq)
	}
	if c.Generator.LexiconPath == "" {
		return errors.New("generator_config.lexicon_path must not be empty")
	}
	if c.Whois.Command == "" {
		return errors.New("whois_config.command must not be empty")
	}
	if c.Whois.TimeoutMs <= 0 {
		return fmt.Errorf("whois_config.timeout_ms must be positive, got %d", c.Whois.TimeoutMs)
	}
	if c.Store.UseStore && c.Store.ModelName == "" {
		return errors.New("store_config.model_name must not be empty when the store is used")
	}
	return nil
}

// GenerateOptions converts the generator section into markov options.
func (c *GeneratorConfig) GenerateOptions(logger *slog.Logger) []markov.GenerateOption {
	opts := []markov.GenerateOption{
		markov.WithContinuation(c.Continuation),
		markov.WithCompoundLimit(c.CompoundLimit),
		markov.WithMaxSteps(c.MaxSteps),
		markov.WithLogger(logger),
	}
	if c.Seed != 0 {
		opts = append(opts, markov.WithSeed(c.Seed))
	}
	return opts
}

// Checker builds the availability checker described by the whois section.
func (c *WhoisConfig) Checker(logger *slog.Logger) *whois.Checker {
	return whois.NewChecker(
		whois.WithCommand(c.Command, c.Args...),
		whois.WithMarker(c.Marker),
		whois.WithTimeout(time.Duration(c.TimeoutMs)*time.Millisecond),
		whois.WithLogger(logger),
	)
}

// FinderSettings converts the finder section into a finder.Config.
func (c *FinderConfig) FinderSettings() finder.Config {
	return finder.Config{
		Rounds:      c.Rounds,
		TLD:         c.TLD,
		MaxFailures: c.MaxFailures,
	}
}

// parseLogLevel maps a config log level onto slog, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
