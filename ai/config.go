// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host"`

	// LLMHost is the base URL for the chat completion service used for
	// query decomposition and answer generation.
	LLMHost string `yaml:"llm_host"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string `yaml:"embedding_model"`

	// LLMModel is the chat model identifier.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	LLMModel string `yaml:"llm_model"`

	// DecomposeTimeout bounds a single decomposition call.
	// Default: 10s
	DecomposeTimeout time.Duration `yaml:"decompose_timeout"`

	// MaxKnownUsers caps how many user names are listed in the
	// decomposition prompt.
	// Default: 10
	MaxKnownUsers int `yaml:"max_known_users"`

	// AnswerTemperature is the sampling temperature for answers.
	// Default: 0.3
	AnswerTemperature float64 `yaml:"answer_temperature"`

	// AnswerMaxTokens caps the length of generated answers.
	// Default: 500
	AnswerMaxTokens int `yaml:"answer_max_tokens"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithLLMHost sets the chat service host URL.
func WithLLMHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.LLMHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithLLMModel sets the chat model identifier.
func WithLLMModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLMModel = model
	}
}

// WithDecomposeTimeout sets the decomposition timeout.
func WithDecomposeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DecomposeTimeout = d
	}
}

// WithAnswerMaxTokens sets the answer length cap.
func WithAnswerMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.AnswerMaxTokens = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, embedding and chat use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:     defaultHost,
		LLMHost:           defaultHost,
		EmbeddingModel:    "embeddinggemma",
		LLMModel:          "qwen2.5:3b",
		DecomposeTimeout:  10 * time.Second,
		MaxKnownUsers:     10,
		AnswerTemperature: 0.3,
		AnswerMaxTokens:   500,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithLLMModel("llama3.1:8b"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.LLMHost = normalizeHost(c.LLMHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.LLMHost == "" {
		return errors.New("ai config: LLMHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.LLMModel == "" {
		return errors.New("ai config: LLMModel is required")
	}
	if c.DecomposeTimeout <= 0 {
		return errors.New("ai config: DecomposeTimeout must be positive")
	}
	if c.MaxKnownUsers < 1 {
		return errors.New("ai config: MaxKnownUsers must be at least 1")
	}
	if c.AnswerTemperature < 0 || c.AnswerTemperature > 2 {
		return errors.New("ai config: AnswerTemperature must be between 0 and 2")
	}
	if c.AnswerMaxTokens < 1 {
		return errors.New("ai config: AnswerMaxTokens must be at least 1")
	}
	return nil
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AI config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse AI config %s: %w", path, err)
	}
	return cfg, nil
}
