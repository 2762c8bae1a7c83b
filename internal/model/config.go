package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all evidentia configuration
type Config struct {
	DataRoot   string           `yaml:"data_root" mapstructure:"data_root"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Lock       LockConfig       `yaml:"lock" mapstructure:"lock"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge" mapstructure:"knowledge"`
	Extractors ExtractorsConfig `yaml:"extractors" mapstructure:"extractors"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// LockConfig configures the single-writer lock on the data root
type LockConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// KnowledgeConfig configures knowledge merge policy
type KnowledgeConfig struct {
	// StickyDeprecated keeps user-ignored records deprecated across rebuilds.
	// Off by default: new evidence returns an ignored record to candidate.
	StickyDeprecated bool `yaml:"sticky_deprecated" mapstructure:"sticky_deprecated"`
}

// ExtractorsConfig names the external commands standing in for transcription and extraction.
// Each command reads a JSON request on stdin and writes its result to stdout.
type ExtractorsConfig struct {
	Transcribe        []string      `yaml:"transcribe" mapstructure:"transcribe"`
	Entities          []string      `yaml:"entities" mapstructure:"entities"`
	PersonRelations   []string      `yaml:"person_relations" mapstructure:"person_relations"`
	ContextRelations  []string      `yaml:"context_relations" mapstructure:"context_relations"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// LLMConfig selects a language model used for any extractor without a command
type LLMConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, or empty
	Model      string        `yaml:"model" mapstructure:"model"`
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens  int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the query result cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// BatchConfig configures multi-document processing
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	dataRoot := "data"
	cacheDir := ".evidentia-cache"
	if home, err := os.UserHomeDir(); err == nil {
		dataRoot = filepath.Join(home, ".evidentia", "data")
		cacheDir = filepath.Join(home, ".evidentia", "cache")
	}

	return &Config{
		DataRoot: dataRoot,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Lock: LockConfig{
			Enabled: true,
			Timeout: 30 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			StickyDeprecated: false,
		},
		Extractors: ExtractorsConfig{
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		LLM: LLMConfig{
			Timeout:   60 * time.Second,
			MaxTokens: 2000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     cacheDir,
			TTL:     24 * time.Hour,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}
