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
	"strconv"

	"github.com/example/krishimitra/cmd/common"
	"github.com/example/krishimitra/pkg/workflow"
)

func runWorkflow(args []string) error {
	fs := flag.NewFlagSet("workflow", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: krishimitra workflow <subcommand> [options]

Subcommands:
  status <workflow-id>             Show progress and subtask results
  execute <workflow-id> <index>     Run the next subtask in order
  summary <workflow-id>             Synthesize the final answer once every subtask has completed

A workflow is created by "krishimitra ask" when a question is too
complex for a single retrieve-and-generate pass.
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("subcommand is required")
	}

	configPath := "config.json"
	config, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	system, err := common.InitializeSystem(config)
	if err != nil {
		return fmt.Errorf("failed to initialize system: %w", err)
	}
	defer system.Close()

	rest := fs.Args()[1:]
	switch fs.Arg(0) {
	case "status":
		return workflowStatus(system, rest)
	case "execute":
		return workflowExecute(system, rest)
	case "summary":
		return workflowSummary(system, rest)
	default:
		return fmt.Errorf("unknown subcommand: %s", fs.Arg(0))
	}
}

func workflowStatus(system *common.System, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("workflow-id is required")
	}
	snapshot, err := system.WorkflowStatus(args[0])
	if err != nil {
		return err
	}
	printSnapshot(snapshot)
	return nil
}

func workflowExecute(system *common.System, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("workflow-id and index are required")
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}

	result, err := system.WorkflowExecuteSubtask(context.Background(), args[0], index)
	if err != nil {
		return err
	}

	if result.Err != "" {
		return fmt.Errorf("subtask %d failed: %s", result.OrderIndex, result.Err)
	}
	fmt.Printf("Subtask %d completed:\n\n%s\n", result.OrderIndex, result.Response)
	return nil
}

func workflowSummary(system *common.System, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("workflow-id is required")
	}
	snapshot, err := system.WorkflowSummary(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Println("Summary:")
	fmt.Println(snapshot.Summary)
	return nil
}

func printSnapshot(snapshot *workflow.Snapshot) {
	fmt.Printf("Status: %s  Progress: %.0f%%\n", snapshot.Status, snapshot.Progress*100)
	fmt.Printf("Query: %s\n\n", snapshot.OriginalQuery)
	fmt.Println("Subtasks:")
	for _, st := range snapshot.Subtasks {
		state := "pending"
		for _, res := range snapshot.Completed {
			if res.OrderIndex != st.OrderIndex {
				continue
			}
			if res.Err != "" {
				state = "errored: " + res.Err
			} else {
				state = "completed"
			}
		}
		fmt.Printf("  [%d] (%s) %s — %s\n", st.OrderIndex, st.IntentType, st.Description, state)
	}
	if snapshot.Summary != "" {
		fmt.Printf("\nSummary:\n%s\n", snapshot.Summary)
	}
}
