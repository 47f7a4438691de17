// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/example/krishimitra/cmd/common"
	"github.com/example/krishimitra/pkg/pipeline"
)

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "Path to configuration file")
	topK := fs.Int("top-k", 0, "Override how many reference records to retrieve")
	verbose := fs.Bool("verbose", false, "Show retrieval context alongside the answer")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: krishimitra ask [options] <question>

Classify a question and, for a single-intent question, retrieve and
answer it directly. A question that needs multiple sequential
subtasks is handed off as a workflow instead of being answered here;
drive it with "krishimitra workflow".

Options:
  -config string
        Path to configuration file (default "config.json")
  -top-k int
        Override how many reference records to retrieve
  -verbose
        Show the assembled retrieval context alongside the answer

Examples:
  krishimitra ask "What is the price of tomato in Bargarh today?"
  krishimitra ask "Compare fertilizer recommendations for rice and wheat, and list government schemes that subsidize them."
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("question is required")
	}
	question := strings.Join(fs.Args(), " ")

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	system, err := common.InitializeSystem(config)
	if err != nil {
		return fmt.Errorf("failed to initialize system: %w", err)
	}
	defer system.Close()

	ctx := context.Background()
	answer, err := system.Pipeline.AnswerWithOptions(ctx, question, &pipeline.Options{TopK: *topK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if answer.IsWorkflow {
		snapshot, err := system.StartWorkflow(question, answer.Subtasks)
		if err != nil {
			return fmt.Errorf("starting workflow: %w", err)
		}
		fmt.Println("This question needs a multi-step workflow.")
		fmt.Printf("Workflow ID: %s\n\n", snapshot.ID)
		fmt.Println("Subtasks:")
		for _, st := range snapshot.Subtasks {
			fmt.Printf("  [%d] (%s) %s\n", st.OrderIndex, st.IntentType, st.Description)
		}
		fmt.Println()
		fmt.Printf("Run each one in order:\n  krishimitra workflow execute %s <index>\n", snapshot.ID)
		fmt.Printf("Then: krishimitra workflow summary %s\n", snapshot.ID)
		return nil
	}

	fmt.Printf("Intent: %s\n\n", answer.Intent)
	fmt.Println("Answer:")
	fmt.Println(answer.Response)
	if *verbose && answer.ContextSummary != "" {
		fmt.Println("\n--- Retrieval context ---")
		fmt.Println(answer.ContextSummary)
	}
	return nil
}
