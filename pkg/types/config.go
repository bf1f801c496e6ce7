package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GenerationConfig holds settings for the text-generation backend.
type GenerationConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the backend: anthropic, openai, or gemini.
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the provider API. Normally
	// sourced from the environment or .secrets/ rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxOutputTokens caps the completion length per call (default 4096).
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// RateLimitConfig bounds token throughput shared across all concurrent calls.
type RateLimitConfig struct {
	// TokensPerMinute is the rolling-window token budget (default 80000).
	TokensPerMinute int `json:"tokens_per_minute" yaml:"tokens_per_minute"`
}

// RetryConfig bounds retry behavior for failed generation calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per call (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the first backoff delay; it doubles per attempt (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// PipelineConfig holds settings for the research pipeline stages.
type PipelineConfig struct {
	// Topics is the number of sub-topics planned per question (default 5).
	Topics int `json:"topics" yaml:"topics"`

	// ShortlistSize is the title-pass cutoff per topic (default 6).
	ShortlistSize int `json:"shortlist_size" yaml:"shortlist_size"`

	// FinalSize is the abstract-pass cutoff per topic (default 3).
	FinalSize int `json:"final_size" yaml:"final_size"`

	// Workers bounds concurrent topic work during collection and analysis
	// (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// SourceConfig holds settings for the document source.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// ResultsPerOrder is the number of candidates fetched per search
	// ordering, so each query yields up to twice this many (default 10).
	ResultsPerOrder int `json:"results_per_order" yaml:"results_per_order"`

	// FetchMaxBytes caps the bytes read when fetching document content
	// (default 262144).
	FetchMaxBytes int64 `json:"fetch_max_bytes" yaml:"fetch_max_bytes"`
}

// StoreConfig holds settings for run persistence.
type StoreConfig struct {
	// DatabasePath is the SQLite database file (default "research.db").
	DatabasePath string `json:"database_path" yaml:"database_path"`
}

// Config groups all sections consumed by the research-assistant commands.
type Config struct {
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Source     SourceConfig     `json:"source" yaml:"source"`
	Store      StoreConfig      `json:"store" yaml:"store"`
}
