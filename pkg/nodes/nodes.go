// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package nodes adapts pkg/retriever and pkg/llm into workflow.Node
// implementations so the subtask mini-pipeline can run as a
// workflow.Graph walk instead of a hand-written call sequence.
package nodes

import (
	"fmt"

	"github.com/example/krishimitra/pkg/llm"
	"github.com/example/krishimitra/pkg/retriever"
	"github.com/example/krishimitra/pkg/workflow"
)

// RetrieveNode runs the retrieval half of the mini-pipeline: it
// embeds state.Query and searches the collections state.IntentType
// routes to.
type RetrieveNode struct {
	retriever *retriever.Retriever
}

// NewRetrieveNode wraps r as a workflow node.
func NewRetrieveNode(r *retriever.Retriever) *RetrieveNode {
	return &RetrieveNode{retriever: r}
}

// Execute retrieves evidence for state.Query and stores it on state
// for the generate node to consume.
func (n *RetrieveNode) Execute(state *workflow.State) (*workflow.NodeResult, error) {
	rc, err := n.retriever.RetrieveK(state.Ctx, state.Query, state.IntentType, state.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve node: %w", err)
	}

	state.Context = rc
	return &workflow.NodeResult{UpdatedState: state}, nil
}

// Name returns the node name.
func (n *RetrieveNode) Name() string { return "retrieve" }

// GenerateNode runs the generation half of the mini-pipeline: it
// assembles a prompt from state.Context and calls the LLM.
type GenerateNode struct {
	llm llm.Provider
}

// NewGenerateNode wraps provider as a workflow node.
func NewGenerateNode(provider llm.Provider) *GenerateNode {
	return &GenerateNode{llm: provider}
}

// Execute prompts the LLM with state.Query and the assembled
// retrieval context, storing the response on state and ending the
// chain.
func (n *GenerateNode) Execute(state *workflow.State) (*workflow.NodeResult, error) {
	resp, err := n.llm.Complete(state.Ctx, &llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPromptGenerate},
			{Role: "user", Content: userPrompt(state)},
		},
		Temperature: 0.3,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("generate node: %w", err)
	}

	state.Response = resp.Content
	return &workflow.NodeResult{UpdatedState: state, NextNode: "finish"}, nil
}

// Name returns the node name.
func (n *GenerateNode) Name() string { return "generate" }

// systemPromptGenerate serves both a standalone query and a workflow
// subtask: the same grounding rules apply either way, and the final
// synthesis (if any) happens in a separate call.
const systemPromptGenerate = `You are an agricultural assistant answering a farmer's question.

Ground your answer only in the context provided below the question. Do not invent facts,
prices, or recommendations not present in the context. If the context is empty or does not
cover the question, say plainly that you don't have enough information rather than guessing.`

func userPrompt(state *workflow.State) string {
	text := "(no matching reference material was found)"
	if state.Context != nil && state.Context.AssembledText != "" {
		text = state.Context.AssembledText
	}
	return "Question: " + state.Query + "\n\nContext:\n" + text
}
