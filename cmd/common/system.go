// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	"context"
	"fmt"
	"time"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/document/chunker"
	"github.com/example/krishimitra/pkg/embedding"
	"github.com/example/krishimitra/pkg/ingest"
	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/llm"
	"github.com/example/krishimitra/pkg/llm/anthropic"
	"github.com/example/krishimitra/pkg/llm/local"
	"github.com/example/krishimitra/pkg/llm/openai"
	"github.com/example/krishimitra/pkg/llm/retrypolicy"
	"github.com/example/krishimitra/pkg/nodes"
	"github.com/example/krishimitra/pkg/pipeline"
	"github.com/example/krishimitra/pkg/retriever"
	"github.com/example/krishimitra/pkg/vectorstore"
	"github.com/example/krishimitra/pkg/vectorstore/qdrant"
	"github.com/example/krishimitra/pkg/workflow"
)

// System wires together every component the agricultural
// query-answering core needs: one retry-wrapped LLM provider (shared
// by classification, subtask generation, and workflow synthesis), a
// shared embedder, a vector store, and the pipeline/workflow pair
// that sits on top of them.
type System struct {
	Config      *Config
	LLM         llm.Provider
	Embedder    embedding.Embedder
	VectorStore vectorstore.Store
	Classifier  *intent.Classifier
	Retriever   *retriever.Retriever
	Pipeline    *pipeline.Pipeline
	Workflow    *workflow.Manager
	Ingest      *ingest.Pipeline

	reaperCtx    context.Context
	reaperCancel context.CancelFunc
}

// InitializeSystem creates and wires every component from config.
func InitializeSystem(config *Config) (*System, error) {
	sys := &System{Config: config}

	if err := sys.initLLM(); err != nil {
		return nil, fmt.Errorf("common: initializing LLM provider: %w", err)
	}
	if err := sys.initEmbedder(); err != nil {
		return nil, fmt.Errorf("common: initializing embedder: %w", err)
	}
	if err := sys.initVectorStore(); err != nil {
		return nil, fmt.Errorf("common: initializing vector store: %w", err)
	}
	sys.initPipeline()
	sys.initWorkflow()
	sys.initIngest()

	sys.reaperCtx, sys.reaperCancel = context.WithCancel(context.Background())
	sys.Workflow.RunReaper(sys.reaperCtx, time.Minute)

	return sys, nil
}

func (s *System) initLLM() error {
	cfg := &llm.Config{
		Provider:           s.Config.DefaultProvider,
		Model:              s.Config.DefaultModel,
		DefaultTemperature: 0.3,
		DefaultMaxTokens:   1000,
		TimeoutSeconds:     30,
	}

	var provider llm.Provider
	var err error
	switch s.Config.DefaultProvider {
	case "anthropic":
		cfg.APIKey = s.Config.AnthropicAPIKey
		provider, err = anthropic.NewProvider(s.Config.AnthropicAPIKey, s.Config.DefaultModel, cfg)
	case "local":
		provider, err = local.NewProvider(s.Config.LocalBaseURL, s.Config.DefaultModel, cfg)
	case "openai":
		cfg.APIKey = s.Config.OpenAIAPIKey
		provider, err = openai.NewProvider(s.Config.OpenAIAPIKey, s.Config.DefaultModel, cfg)
	default:
		return coreerrors.New(coreerrors.InvalidArgument, "common.initLLM", fmt.Sprintf("unsupported provider %q", s.Config.DefaultProvider))
	}
	if err != nil {
		return err
	}

	s.LLM = retrypolicy.Wrap(provider, retrypolicy.Policy{
		MaxRetries: s.Config.LLMRetryMax,
		BaseDelay:  time.Duration(s.Config.LLMRetryBaseMS) * time.Millisecond,
		CapDelay:   time.Duration(s.Config.LLMRetryCapMS) * time.Millisecond,
	})
	return nil
}

func (s *System) initEmbedder() error {
	switch s.Config.EmbeddingProvider {
	case "openai":
		inner, err := embedding.NewOpenAIEmbedder(s.Config.EmbeddingAPIKey, s.Config.EmbeddingModel, &embedding.Config{
			BatchSize:      s.Config.EmbeddingBatch,
			TimeoutSeconds: 5,
		})
		if err != nil {
			return err
		}
		s.Embedder = embedding.NewSharedEmbedder(inner, nil)
		return nil
	default:
		return coreerrors.New(coreerrors.InvalidArgument, "common.initEmbedder", fmt.Sprintf("unsupported embedding provider %q", s.Config.EmbeddingProvider))
	}
}

func (s *System) initVectorStore() error {
	switch s.Config.VectorStoreType {
	case "qdrant":
		store, err := qdrant.NewStore(s.Config.VectorStorePath, &vectorstore.Config{
			DefaultCollection: s.Config.DefaultCollection,
			TimeoutSeconds:    2,
		})
		if err != nil {
			return err
		}
		s.VectorStore = store
		return nil
	default:
		return coreerrors.New(coreerrors.InvalidArgument, "common.initVectorStore", fmt.Sprintf("unsupported vector store type %q", s.Config.VectorStoreType))
	}
}

// initPipeline builds the retriever, classifier, the retrieve ->
// generate mini-pipeline graph, and the single-shot Pipeline that runs
// it. The workflow Manager is given this Pipeline as its subtask
// runner, so a subtask and a single-shot query run through the same
// Executor.
func (s *System) initPipeline() {
	s.Retriever = retriever.New(s.VectorStore, s.Embedder, &retriever.Config{
		DefaultTopK: s.Config.DefaultTopK,
		ByteBudget:  s.Config.ContextByteBudget,
	})
	s.Classifier = intent.NewClassifier(s.LLM)

	graph, err := workflow.BuildSubtaskGraph(map[string]workflow.Node{
		"retrieve": nodes.NewRetrieveNode(s.Retriever),
		"generate": nodes.NewGenerateNode(s.LLM),
	})
	if err != nil {
		// Both node names are supplied by this function; a mismatch
		// here is a programming error, not a runtime configuration one.
		panic(fmt.Sprintf("common: building subtask graph: %v", err))
	}
	executor := workflow.NewExecutor(graph, nil)

	s.Pipeline = pipeline.New(s.Classifier, executor, s.Config.MaxQueryLength)
}

func (s *System) initWorkflow() {
	s.Workflow = workflow.NewManager(s.LLM, s.Pipeline, &workflow.Config{
		TTL: time.Duration(s.Config.WorkflowTTLSeconds) * time.Second,
		Cap: s.Config.WorkflowCap,
	})
}

// initIngest wires the reference-data ingestion pipeline. No Sources
// are pre-registered: the ingest CLI subcommand loads files from disk
// through pkg/document/parser and passes the records straight to
// Pipeline.Run.
func (s *System) initIngest() {
	s.Ingest = &ingest.Pipeline{
		Chunker:  chunker.NewChunker(nil),
		Embedder: s.Embedder,
		Store:    s.VectorStore,
		Registry: ingest.NewRegistry(),
	}
}

// Answer runs a single query through the classify -> (retrieve ->
// generate | workflow handoff) pipeline.
func (s *System) Answer(ctx context.Context, query string) (*pipeline.Answer, error) {
	return s.Pipeline.Answer(ctx, query)
}

// StartWorkflow registers a decomposed query's subtasks for sequential
// execution.
func (s *System) StartWorkflow(query string, subtasks []intent.SubtaskSpec) (*workflow.Snapshot, error) {
	return s.Workflow.Start(query, subtasks)
}

// WorkflowExecuteSubtask runs one subtask of workflowID.
func (s *System) WorkflowExecuteSubtask(ctx context.Context, workflowID string, index int) (*workflow.SubtaskResult, error) {
	return s.Workflow.ExecuteSubtask(ctx, workflowID, index)
}

// WorkflowSummary returns workflowID's synthesized final answer.
func (s *System) WorkflowSummary(ctx context.Context, workflowID string) (*workflow.Snapshot, error) {
	return s.Workflow.Finalize(ctx, workflowID)
}

// WorkflowStatus reports workflowID's current progress.
func (s *System) WorkflowStatus(workflowID string) (*workflow.Snapshot, error) {
	return s.Workflow.Status(workflowID)
}

// RebuildIndex reloads and re-embeds reference records from their
// registered ingest.Sources, atomically replacing each collection's
// contents. An empty collection name rebuilds every registered
// collection.
func (s *System) RebuildIndex(ctx context.Context, collection string) ([]*ingest.Result, error) {
	if collection == "" {
		return s.Ingest.RunAll(ctx)
	}
	res, err := s.Ingest.RunCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return []*ingest.Result{res}, nil
}

// Close releases system resources, including the workflow reaper.
func (s *System) Close() error {
	if s.reaperCancel != nil {
		s.reaperCancel()
	}
	s.Workflow.Stop()
	if s.VectorStore != nil {
		return s.VectorStore.Close()
	}
	return nil
}
