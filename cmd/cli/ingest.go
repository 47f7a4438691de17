// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/krishimitra/cmd/common"
	"github.com/example/krishimitra/pkg/document/parser"
	"github.com/example/krishimitra/pkg/ingest"
)

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "Path to configuration file")
	collection := fs.String("collection", "", "Target collection name (prices, soil, pest_control, fertilizers, schemes)")
	verbose := fs.Bool("verbose", false, "Show per-file processing information")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: krishimitra ingest [options] <file>...

(Re)builds a reference-data collection from already-parsed records and
atomically replaces its contents in the vector store. CSV ingestion is
out of scope: each input file is either a JSON array of records
({"id","title","content","metadata"}), or a plain-text/Markdown
document treated as a single record.

Options:
  -config string
        Path to configuration file (default "config.json")
  -collection string
        Target collection name; required
  -verbose
        Show per-file processing information

Examples:
  krishimitra ingest -collection prices market_prices.json
  krishimitra ingest -collection schemes schemes/*.md
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("at least one file is required")
	}
	if *collection == "" {
		return fmt.Errorf("-collection is required")
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	system, err := common.InitializeSystem(config)
	if err != nil {
		return fmt.Errorf("failed to initialize system: %w", err)
	}
	defer system.Close()

	registry := parser.NewParserRegistry()

	var records []ingest.Record
	for _, path := range fs.Args() {
		fileRecords, err := loadRecords(registry, path, *collection)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		if *verbose {
			fmt.Printf("%s: %d record(s)\n", path, len(fileRecords))
		}
		records = append(records, fileRecords...)
	}

	ctx := context.Background()
	result, err := system.Ingest.Run(ctx, *collection, records)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Collection:  %s\n", result.Collection)
	fmt.Printf("  Records:     %d\n", result.RecordCount)
	fmt.Printf("  Chunks:      %d\n", result.ChunkCount)
	fmt.Printf("  Inserted:    %d\n", result.InsertedCount)

	return nil
}

// loadRecords turns one input file into one or more ingest.Record
// values. A .json file is decoded as an array of records directly; any
// other supported extension goes through pkg/document/parser and
// becomes a single record.
func loadRecords(registry *parser.ParserRegistry, path, collection string) ([]ingest.Record, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var raw []struct {
			ID       string                 `json:"id"`
			Title    string                 `json:"title"`
			Content  string                 `json:"content"`
			Metadata map[string]interface{} `json:"metadata"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing JSON records: %w", err)
		}
		records := make([]ingest.Record, 0, len(raw))
		for _, r := range raw {
			records = append(records, ingest.Record{
				ID:         r.ID,
				Collection: collection,
				Title:      r.Title,
				Content:    r.Content,
				Metadata:   r.Metadata,
			})
		}
		return records, nil
	}

	p, ok := registry.GetParser(ext)
	if !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := p.Parse(f, path)
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	return []ingest.Record{{
		ID:         path,
		Collection: collection,
		Title:      doc.Title,
		Content:    doc.Content,
		Metadata:   metadata,
	}}, nil
}
