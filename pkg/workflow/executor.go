// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"
	"fmt"
	"time"
)

// Executor runs the workflow graph with state management.
type Executor struct {
	graph   *Graph
	timeout time.Duration
}

// ExecutorConfig contains configuration for the executor.
type ExecutorConfig struct {
	Timeout time.Duration
}

// NewExecutor creates a new workflow executor.
func NewExecutor(graph *Graph, config *ExecutorConfig) *Executor {
	if config == nil {
		config = &ExecutorConfig{
			Timeout: 5 * time.Minute,
		}
	}

	return &Executor{
		graph:   graph,
		timeout: config.Timeout,
	}
}

// Execute runs the workflow graph starting from the initial state.
func (e *Executor) Execute(ctx context.Context, initialState *State) (*State, error) {
	if e.graph == nil {
		return nil, fmt.Errorf("graph is nil")
	}

	if initialState == nil {
		return nil, fmt.Errorf("initial state is nil")
	}

	// Apply timeout
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Get starting node
	currentNodeName := e.graph.GetStartNode()
	if currentNodeName == "" {
		return nil, fmt.Errorf("no start node defined")
	}

	state := initialState
	state.Ctx = ctx
	iterationCount := 0

	// Execute nodes in sequence. The subtask graph this walks is a
	// short fixed chain (retrieve -> generate), but the loop still
	// guards against cycles in a misbuilt graph.
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("execution timeout or cancelled: %w", ctx.Err())
		default:
		}

		iterationCount++
		if iterationCount > 20 {
			return nil, fmt.Errorf("exceeded maximum iteration count (20)")
		}

		node, err := e.graph.GetNode(currentNodeName)
		if err != nil {
			return nil, fmt.Errorf("failed to get node %s: %w", currentNodeName, err)
		}

		state.Ctx = ctx
		result, err := node.Execute(state)
		if err != nil {
			return nil, fmt.Errorf("node %s execution failed: %w", currentNodeName, err)
		}

		if result == nil {
			return nil, fmt.Errorf("node %s returned nil result", currentNodeName)
		}

		state = result.UpdatedState
		if state == nil {
			return nil, fmt.Errorf("node %s returned nil state", currentNodeName)
		}

		if state.Error != nil {
			return state, fmt.Errorf("workflow error: %w", state.Error)
		}

		if result.NextNode == "finish" {
			break
		}

		if result.NextNode != "" {
			currentNodeName = result.NextNode
			continue
		}

		nextNodes := e.graph.GetNextNodes(currentNodeName)
		if len(nextNodes) == 0 {
			break
		}
		currentNodeName = nextNodes[0]
	}

	return state, nil
}

// ExecuteStep runs a single step of the workflow (for debugging/testing).
func (e *Executor) ExecuteStep(ctx context.Context, state *State, nodeName string) (*State, error) {
	node, err := e.graph.GetNode(nodeName)
	if err != nil {
		return nil, err
	}

	state.Ctx = ctx
	result, err := node.Execute(state)
	if err != nil {
		return nil, err
	}

	return result.UpdatedState, nil
}
