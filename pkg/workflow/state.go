// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"

	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/retriever"
)

// State is passed between nodes of the subtask mini-pipeline: embed
// and retrieve, then prompt and generate. A subtask never loops back;
// the graph it flows through is a short fixed chain.
type State struct {
	// Ctx carries the caller's cancellation signal down to nodes. The
	// Node interface predates context.Context parameters, so the
	// executor threads it through State rather than the call signature.
	Ctx context.Context

	Query      string
	IntentType intent.Label

	// TopK overrides the retriever's default top-k budget for this
	// execution when positive.
	TopK int

	Context  *retriever.RetrievalContext
	Response string

	Error error
}

// NewState builds the initial State for running one subtask (or a
// single-shot query) through the mini-pipeline.
func NewState(ctx context.Context, query string, intentType intent.Label) *State {
	return &State{Ctx: ctx, Query: query, IntentType: intentType}
}

// NodeResult is a node's outcome: updated state plus an optional
// explicit next-node name. An empty NextNode tells the executor to
// follow the graph's default edge.
type NodeResult struct {
	UpdatedState *State
	NextNode     string
	Error        error
}
