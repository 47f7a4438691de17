// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/example/krishimitra/cmd/common"
)

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: krishimitra config <subcommand> [options]

Subcommands:
  show      Display current configuration
  init      Create a default configuration file
  validate  Validate a configuration file

Examples:
  krishimitra config show
  krishimitra config init
  krishimitra config validate config.json
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("subcommand is required")
	}

	switch fs.Arg(0) {
	case "show":
		return showConfig(fs.Args()[1:])
	case "init":
		return initConfig(fs.Args()[1:])
	case "validate":
		return validateConfig(fs.Args()[1:])
	default:
		return fmt.Errorf("unknown subcommand: %s", fs.Arg(0))
	}
}

func showConfig(args []string) error {
	configPath := "config.json"
	if len(args) > 0 {
		configPath = args[0]
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

func initConfig(args []string) error {
	outputPath := "config.json"
	if len(args) > 0 {
		outputPath = args[0]
	}

	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("config file already exists: %s (delete it first or specify a different path)", outputPath)
	}

	if err := common.DefaultConfig().SaveToFile(outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", outputPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the config file to add your API keys")
	fmt.Println("2. Configure your vector store connection")
	fmt.Printf("3. Run 'krishimitra config validate %s' to verify\n", outputPath)

	return nil
}

func validateConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("config file path is required")
	}
	configPath := args[0]

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var errs []string
	if config.DefaultProvider == "" {
		errs = append(errs, "default_provider is required")
	}
	if config.DefaultModel == "" {
		errs = append(errs, "default_model is required")
	}
	if config.EmbeddingProvider == "" {
		errs = append(errs, "embedding_provider is required")
	}
	if config.EmbeddingModel == "" {
		errs = append(errs, "embedding_model is required")
	}
	if config.VectorStoreType == "" {
		errs = append(errs, "vector_store_type is required")
	}
	if config.VectorStorePath == "" {
		errs = append(errs, "vector_store_path is required")
	}

	switch config.DefaultProvider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			errs = append(errs, "openai_api_key is required when default_provider is \"openai\"")
		}
	case "anthropic":
		if config.AnthropicAPIKey == "" {
			errs = append(errs, "anthropic_api_key is required when default_provider is \"anthropic\"")
		}
	case "local":
		if config.LocalBaseURL == "" {
			errs = append(errs, "local_base_url is required when default_provider is \"local\"")
		}
	}

	if len(errs) > 0 {
		fmt.Println("Validation errors:")
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("configuration is invalid")
	}

	fmt.Printf("Configuration is valid: %s\n", configPath)
	return nil
}
