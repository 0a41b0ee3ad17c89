// Package config holds the persistent roundup configuration: model
// credentials, pipeline tuning, the section table, and feed sources.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the persistent application configuration.
type Config struct {
	DataDir        string `yaml:"data_dir"`
	LogLevel       string `yaml:"log_level"`
	PreferredModel string `yaml:"preferred_model"`

	Models     ModelConfig      `yaml:"models"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Grouping   GroupingConfig   `yaml:"grouping"`
	Lookback   LookbackConfig   `yaml:"lookback"`
	Resolver   ResolverConfig   `yaml:"resolver"`

	Sections []SectionConfig `yaml:"sections"`
	Sources  []SourceConfig  `yaml:"sources"`

	// TaxonomyFile replaces the embedded keyword taxonomy when set.
	TaxonomyFile string `yaml:"taxonomy_file,omitempty"`
}

// ModelConfig holds LLM provider settings for the classification service.
type ModelConfig struct {
	Claude ModelSettings `yaml:"claude"`
	OpenAI ModelSettings `yaml:"openai"`
	Ollama ModelSettings `yaml:"ollama"`
}

// ModelSettings for a single provider.
type ModelSettings struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// ClassifierConfig tunes the classification pool and reconciliation.
type ClassifierConfig struct {
	Workers         int     `yaml:"workers"`
	RatePerSecond   float64 `yaml:"rate_per_second"`
	Burst           int     `yaml:"burst"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	MaxRetries      int     `yaml:"max_retries"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	DegradedCeiling float64 `yaml:"degraded_ceiling"`
	OutletSignal    int     `yaml:"outlet_signal"`
	OutletBoost     float64 `yaml:"outlet_boost"`
}

// GroupingConfig tunes event clustering.
type GroupingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinSharedFeatures   int     `yaml:"min_shared_features"`
	TimeWindowHours     int     `yaml:"time_window_hours"`
}

// LookbackConfig tunes the date policy.
type LookbackConfig struct {
	Timezone          string `yaml:"timezone"`
	WeekendCutoffHour int    `yaml:"weekend_cutoff_hour"`
	MidweekHours      int    `yaml:"midweek_hours"`
	DefaultHours      int    `yaml:"default_hours"`
	FutureSkewMinutes int    `yaml:"future_skew_minutes"`
}

// ResolverConfig tunes fuzzy target resolution in the edit session.
type ResolverConfig struct {
	MatchMin        float64 `yaml:"match_min"`
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`
}

// SourceConfig is one configured feed.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Domain string `yaml:"domain,omitempty"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:        filepath.Join(home, ".roundup"),
		LogLevel:       "info",
		PreferredModel: "claude",
		Models: ModelConfig{
			Claude: ModelSettings{
				Enabled: true,
				Model:   "claude-3-5-haiku-latest",
			},
			OpenAI: ModelSettings{
				Model: "gpt-4o-mini",
			},
			Ollama: ModelSettings{
				Endpoint: "http://localhost:11434",
			},
		},
		Classifier: ClassifierConfig{
			Workers:         4,
			RatePerSecond:   4,
			Burst:           4,
			TimeoutSeconds:  20,
			MaxRetries:      2,
			ConfidenceFloor: 0.25,
			DegradedCeiling: 0.4,
			OutletSignal:    3,
			OutletBoost:     0.15,
		},
		Grouping: GroupingConfig{
			SimilarityThreshold: 0.35,
			MinSharedFeatures:   2,
			TimeWindowHours:     24,
		},
		Lookback: LookbackConfig{
			Timezone:          "America/New_York",
			WeekendCutoffHour: 5,
			MidweekHours:      36,
			DefaultHours:      24,
			FutureSkewMinutes: 15,
		},
		Resolver: ResolverConfig{
			MatchMin:        0.5,
			AmbiguityMargin: 0.15,
		},
		Sections: DefaultSections(),
		Sources:  DefaultSources(),
	}
}

// Path returns the default config file location.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".roundup", "config.yaml")
}

// Load reads config from path (or Path() when empty), layering the file
// over defaults and then environment overrides. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to path (or Path() when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(path, data, 0600) // api keys
}

// AutoPopulateFromEnv applies environment overrides.
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("ROUNDUP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ROUNDUP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ROUNDUP_TAXONOMY"); v != "" {
		c.TaxonomyFile = v
	}
	if v := os.Getenv("ROUNDUP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Classifier.Workers = n
		}
	}

	if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if v := os.Getenv("CLAUDE_MODEL"); v != "" {
		c.Models.Claude.Model = v
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Models.OpenAI.APIKey = key
		c.Models.OpenAI.Enabled = true
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Models.OpenAI.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Models.Ollama.Endpoint = v
		c.Models.Ollama.Enabled = true
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.Models.Ollama.Model = v
	}
}

// Validate checks invariants the pipeline relies on.
func (c *Config) Validate() error {
	if len(c.Sections) == 0 {
		return errors.New("config: no sections configured")
	}
	seen := make(map[string]bool, len(c.Sections))
	catchAll := 0
	for _, s := range c.Sections {
		if s.Name == "" {
			return errors.New("config: section without name")
		}
		if s.Name == "skip" {
			return errors.New("config: skip is reserved")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate section %q", s.Name)
		}
		seen[s.Name] = true
		if s.Min < 0 || s.Max < 1 || s.Min > s.Max {
			return fmt.Errorf("config: section %q has invalid bounds min=%d max=%d", s.Name, s.Min, s.Max)
		}
		if s.CatchAll {
			catchAll++
		}
	}
	if catchAll > 1 {
		return errors.New("config: more than one catch-all section")
	}

	cl := c.Classifier
	if cl.Workers < 1 {
		return errors.New("config: classifier.workers must be positive")
	}
	if cl.ConfidenceFloor < 0 || cl.DegradedCeiling > 1 || cl.ConfidenceFloor > cl.DegradedCeiling {
		return fmt.Errorf("config: confidence floor %.2f must not exceed degraded ceiling %.2f",
			cl.ConfidenceFloor, cl.DegradedCeiling)
	}

	g := c.Grouping
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold > 1 {
		return fmt.Errorf("config: grouping.similarity_threshold %.2f out of range", g.SimilarityThreshold)
	}
	return nil
}

// EnabledModels returns the providers that are enabled and usable.
func (c *Config) EnabledModels() []string {
	var models []string
	if c.Models.Claude.Enabled && c.Models.Claude.APIKey != "" {
		models = append(models, "claude")
	}
	if c.Models.OpenAI.Enabled && c.Models.OpenAI.APIKey != "" {
		models = append(models, "openai")
	}
	if c.Models.Ollama.Enabled {
		models = append(models, "ollama")
	}
	return models
}

// LogDir, EventDir and DBPath are derived from DataDir.
func (c *Config) LogDir() string   { return filepath.Join(c.DataDir, "logs") }
func (c *Config) EventDir() string { return filepath.Join(c.DataDir, "events") }
func (c *Config) DBPath() string   { return filepath.Join(c.DataDir, "roundup.db") }
