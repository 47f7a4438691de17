// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	config "github.com/example/krishimitra/internal/config"
)

// Config is an alias for internal/config.Config so CLI code can keep
// referring to common.Config without this package carrying its own
// duplicate definition.
type Config = config.Config

// LoadConfig loads configuration from a JSON file, applying defaults
// for any recognized key left unset.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}

// DefaultConfig returns a configuration suitable for `config init`.
func DefaultConfig() *Config {
	return config.Default()
}
