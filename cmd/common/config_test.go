// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig_DefaultsApplied ensures LoadConfig fills unset
// recognized keys with their defaults.
func TestLoadConfig_DefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"default_provider": "anthropic"}`), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q, want anthropic", cfg.DefaultProvider)
	}
	if cfg.DefaultTopK != 5 {
		t.Errorf("DefaultTopK = %d, want default 5", cfg.DefaultTopK)
	}
	if cfg.WorkflowCap != 10000 {
		t.Errorf("WorkflowCap = %d, want default 10000", cfg.WorkflowCap)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want openai", cfg.DefaultProvider)
	}
	if cfg.VectorStoreType != "qdrant" {
		t.Errorf("VectorStoreType = %q, want qdrant", cfg.VectorStoreType)
	}
}
