// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package pipeline implements the single-shot query orchestrator:
// classify, then retrieve-and-generate. The retrieve-and-generate
// step is the same mini-pipeline a workflow subtask runs, so Pipeline
// and workflow.Manager share one workflow.Executor instance rather
// than each assembling their own retrieve/generate call sequence.
package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/workflow"
)

// Answer is the result of a single-shot query. Complex queries return
// IsWorkflow=true with the subtasks the caller should hand to a
// workflow.Manager; the pipeline does not execute them itself.
type Answer struct {
	Response       string
	Intent         intent.Label
	ContextSummary string
	IsWorkflow     bool
	Subtasks       []intent.SubtaskSpec
}

// Pipeline wires a Classifier and a mini-pipeline Executor into the
// classify -> retrieve -> prompt -> generate flow.
type Pipeline struct {
	Classifier *intent.Classifier
	Executor   *workflow.Executor

	// MaxQueryLength caps accepted query length in runes. Queries
	// longer than this are rejected before classification runs. Zero
	// means no cap.
	MaxQueryLength int
}

// New builds a Pipeline. executor should run the two-node graph built
// by workflow.BuildSubtaskGraph (retrieve, then generate). maxQueryLength
// caps accepted query length in runes; 0 disables the cap.
func New(classifier *intent.Classifier, executor *workflow.Executor, maxQueryLength int) *Pipeline {
	return &Pipeline{Classifier: classifier, Executor: executor, MaxQueryLength: maxQueryLength}
}

// Options carries a caller's per-request hints. The zero value means
// "use the configured defaults".
type Options struct {
	// TopK overrides the retriever's default top-k budget when positive.
	TopK int
}

// Answer classifies query and, for simple queries, retrieves and
// generates a response. Complex queries are handed back as an Answer
// with IsWorkflow set, without being executed: the caller is
// responsible for starting a workflow.Manager with the subtasks.
func (p *Pipeline) Answer(ctx context.Context, query string) (*Answer, error) {
	return p.AnswerWithOptions(ctx, query, nil)
}

// AnswerWithOptions is Answer with per-request hints applied.
func (p *Pipeline) AnswerWithOptions(ctx context.Context, query string, opts *Options) (*Answer, error) {
	if p.MaxQueryLength > 0 && utf8.RuneCountInString(query) > p.MaxQueryLength {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "pipeline.Answer",
			fmt.Sprintf("query length %d exceeds the %d rune maximum", utf8.RuneCountInString(query), p.MaxQueryLength))
	}
	if opts == nil {
		opts = &Options{}
	}

	decision := p.Classifier.Classify(ctx, query)

	if decision.IsComplex {
		return &Answer{
			Intent:     intent.Complex,
			IsWorkflow: true,
			Subtasks:   decision.Subtasks,
		}, nil
	}

	state := workflow.NewState(ctx, query, decision.Label)
	state.TopK = opts.TopK
	response, summary, err := p.run(state)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Response:       response,
		Intent:         decision.Label,
		ContextSummary: summary,
		IsWorkflow:     false,
	}, nil
}

// Generate runs query through the retrieve -> generate mini-pipeline
// under the given intent label. It is used both for single-shot
// queries and, by workflow.Manager, for individual workflow subtasks.
func (p *Pipeline) Generate(ctx context.Context, query string, label intent.Label) (response, contextSummary string, err error) {
	return p.run(workflow.NewState(ctx, query, label))
}

func (p *Pipeline) run(initial *workflow.State) (response, contextSummary string, err error) {
	state, err := p.Executor.Execute(initial.Ctx, initial)
	if err != nil {
		return "", "", fmt.Errorf("pipeline: mini-pipeline failed: %w", err)
	}

	summary := ""
	if state.Context != nil {
		summary = state.Context.AssembledText
	}
	return state.Response, summary, nil
}
