package model

import (
	"fmt"
	"time"
)

// Config holds all sitclass configuration
type Config struct {
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Classifier   ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Taxonomy     TaxonomyConfig    `yaml:"taxonomy" mapstructure:"taxonomy"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects and tunes the model provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // Never written to config files
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// ClassifierConfig tunes the hierarchical traversal
type ClassifierConfig struct {
	Attempts      int `yaml:"attempts" mapstructure:"attempts"`             // Independent traversals per description
	MaxDepth      int `yaml:"max_depth" mapstructure:"max_depth"`           // Deepest level to descend to
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"` // Hard ceiling on prompts per attempt
	MaxExamples   int `yaml:"max_examples" mapstructure:"max_examples"`     // Few-shot examples per prompt
	ContextWindow int `yaml:"context_window" mapstructure:"context_window"` // Recent results fed back as hints
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`         // Descriptions per context batch, 0 = whole file
}

// TaxonomyConfig locates the taxonomy store
type TaxonomyConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// CacheConfig controls caching of model replies
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig throttles calls to the model provider
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls how many input files are processed at once
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls result rendering
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // csv, json, jsonl
	Dir    string `yaml:"dir" mapstructure:"dir"` // Empty writes next to each input
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Output formats
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30,
			MaxTokens:   10,
			Temperature: 0,
		},
		Classifier: ClassifierConfig{
			Attempts:      3,
			MaxDepth:      4,
			MaxIterations: 10,
			MaxExamples:   5,
			ContextWindow: 3,
			BatchSize:     10,
		},
		Taxonomy: TaxonomyConfig{
			DBPath: "sitc.db",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".sitclass-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 1,
		},
		Output: OutputConfig{
			Format: FormatCSV,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate checks the configuration for values the classifier cannot run with
func (c *Config) Validate() error {
	if c.Classifier.Attempts < 1 {
		return fmt.Errorf("classifier.attempts must be at least 1, got %d", c.Classifier.Attempts)
	}
	if c.Classifier.MaxDepth < 1 || c.Classifier.MaxDepth > MaxLevel {
		return fmt.Errorf("classifier.max_depth must be between 1 and %d, got %d", MaxLevel, c.Classifier.MaxDepth)
	}
	if c.Classifier.MaxIterations < 1 {
		return fmt.Errorf("classifier.max_iterations must be at least 1, got %d", c.Classifier.MaxIterations)
	}
	if c.Classifier.ContextWindow < 1 {
		return fmt.Errorf("classifier.context_window must be at least 1, got %d", c.Classifier.ContextWindow)
	}
	if c.Classifier.BatchSize < 0 {
		return fmt.Errorf("classifier.batch_size must not be negative, got %d", c.Classifier.BatchSize)
	}
	switch c.Output.Format {
	case FormatCSV, FormatJSON, FormatJSONL:
	default:
		return fmt.Errorf("unknown output format: %s (supported: csv, json, jsonl)", c.Output.Format)
	}
	if c.Taxonomy.DBPath == "" {
		return fmt.Errorf("taxonomy.db_path is required")
	}
	return nil
}
