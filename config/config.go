// Package config loads and validates the pipeline configuration.
//
// A Config is an immutable value: it is read once at startup and passed
// by value into every pipeline entry point. There is no process-wide
// configuration state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the knobs the pipeline needs. Zero values are filled
// with defaults by Load and Default.
type Config struct {
	// Threshold is the minimum similarity score for a triage decision
	// to be taken without a model fallback call.
	Threshold float64 `yaml:"threshold"`

	// TopK is how many warm matches to request from the similarity store.
	TopK int `yaml:"top_k"`

	// MaxHistoryPairs is how many recent email/response pairs to load
	// from the hot store, and how often the rolling summary refreshes.
	MaxHistoryPairs int `yaml:"max_history_pairs"`

	// MaxTokens bounds the memory region of the prompt.
	MaxTokens int `yaml:"max_tokens"`

	// MaxPromptTokens bounds the full assembled prompt.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`

	// ChatModel and SummaryModel name the models used for generation /
	// fallback classification and for summarization.
	ChatModel    string `yaml:"chat_model"`
	SummaryModel string `yaml:"summary_model"`

	// EmbeddingModel names the embedding model used by the embedder.
	EmbeddingModel string `yaml:"embedding_model"`

	// CallTimeout bounds every external call (similarity search,
	// relational read, model call). Timeouts degrade, never hang.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Threshold:       0.37,
		TopK:            5,
		MaxHistoryPairs: 5,
		MaxTokens:       2000,
		MaxPromptTokens: 12000,
		ChatModel:       "claude-sonnet-4-20250514",
		SummaryModel:    "claude-3-5-haiku-20241022",
		EmbeddingModel:  "text-embedding-3-small",
		CallTimeout:     30 * time.Second,
	}
}

// Load reads a YAML configuration file, fills defaults for anything
// unset, and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %v", c.Threshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MaxHistoryPairs <= 0 {
		return fmt.Errorf("max_history_pairs must be positive, got %d", c.MaxHistoryPairs)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxPromptTokens < c.MaxTokens {
		return fmt.Errorf("max_prompt_tokens (%d) must be >= max_tokens (%d)", c.MaxPromptTokens, c.MaxTokens)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %v", c.CallTimeout)
	}
	return nil
}
