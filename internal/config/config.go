// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package config loads and validates the agricultural query-answering
// core's configuration: vector store connection, embedding and LLM
// provider selection, retrieval defaults, and workflow retention.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the complete configuration for the agricultural
// query-answering core. Field names track the recognized
// configuration keys directly; provider credentials and connection
// details that aren't part of that closed set live alongside them
// since the core has to wire a live provider from something.
type Config struct {
	// VectorStorePath is the vector store's connection address (e.g.
	// a qdrant host:port). Named VectorStorePath to match the
	// recognized key; it need not be a filesystem path.
	VectorStorePath   string `json:"vector_store_path"`
	VectorStoreType   string `json:"vector_store_type"`
	DefaultCollection string `json:"default_collection"`

	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingAPIKey   string `json:"embedding_api_key,omitempty"`
	EmbeddingBatch    int    `json:"embedding_batch_size"`

	DefaultTopK       int `json:"default_top_k"`
	ContextByteBudget int `json:"context_byte_budget"`

	// MaxQueryLength caps the number of runes accepted in a single
	// query; longer queries are rejected before classification runs.
	MaxQueryLength int `json:"max_query_length"`

	// DefaultProvider selects which llm.Provider backs both
	// classification and generation: "openai", "anthropic", or
	// "local".
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model"`
	OpenAIAPIKey    string `json:"openai_api_key,omitempty"`
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"`
	LocalBaseURL    string `json:"local_base_url,omitempty"`

	WorkflowTTLSeconds int `json:"workflow_ttl_seconds"`
	WorkflowCap        int `json:"workflow_cap"`

	LLMRetryMax    int `json:"llm_retry_max"`
	LLMRetryBaseMS int `json:"llm_retry_base_ms"`
	LLMRetryCapMS  int `json:"llm_retry_cap_ms"`
}

// LoadFromFile loads configuration from a JSON file and fills in
// unset fields with Default's values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(&config)
	return &config, nil
}

// Default returns the default configuration.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// LoadFromEnv builds a configuration from environment variables
// (and any .env / .env.local overlay), applying the same defaults as
// LoadFromFile for anything left unset. Intended for containerized
// deployments where a config file isn't mounted.
func LoadFromEnv() *Config {
	loadEnvFiles()

	config := &Config{
		VectorStorePath:   getEnv("VECTOR_STORE_PATH", ""),
		VectorStoreType:   getEnv("VECTOR_STORE_TYPE", ""),
		DefaultCollection: getEnv("DEFAULT_COLLECTION", ""),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", ""),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
		EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
		DefaultProvider:   getEnv("DEFAULT_PROVIDER", ""),
		DefaultModel:      getEnv("DEFAULT_MODEL", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		LocalBaseURL:      getEnv("LOCAL_LLM_BASE_URL", ""),
	}

	applyDefaults(config)
	return config
}

// SaveToFile writes config to path as indented JSON.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// applyDefaults fills in zero-valued fields: top_k=5, workflow
// TTL=1h, workflow cap=10000, context byte budget=8192, max query
// length=2000 runes, retry N=3/base 500ms/cap 4s.
func applyDefaults(c *Config) {
	if c.VectorStoreType == "" {
		c.VectorStoreType = "qdrant"
	}
	if c.VectorStorePath == "" {
		c.VectorStorePath = "localhost:6334"
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "general"
	}
	if c.EmbeddingProvider == "" {
		c.EmbeddingProvider = "openai"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.EmbeddingBatch == 0 {
		c.EmbeddingBatch = 100
	}
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 5
	}
	if c.ContextByteBudget == 0 {
		c.ContextByteBudget = 8192
	}
	if c.MaxQueryLength == 0 {
		c.MaxQueryLength = 2000
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = "openai"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "gpt-4o-mini"
	}
	if c.WorkflowTTLSeconds == 0 {
		c.WorkflowTTLSeconds = 3600
	}
	if c.WorkflowCap == 0 {
		c.WorkflowCap = 10000
	}
	if c.LLMRetryMax == 0 {
		c.LLMRetryMax = 3
	}
	if c.LLMRetryBaseMS == 0 {
		c.LLMRetryBaseMS = 500
	}
	if c.LLMRetryCapMS == 0 {
		c.LLMRetryCapMS = 4000
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadEnvFiles() {
	envFiles := []string{".env", ".env.local"}
	merged := make(map[string]string)

	for _, file := range envFiles {
		envMap, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			continue
		}
		for key, value := range envMap {
			merged[key] = value
		}
	}

	for key, value := range merged {
		current, exists := os.LookupEnv(key)
		if !exists || current == "" {
			_ = os.Setenv(key, value)
		}
	}
}
