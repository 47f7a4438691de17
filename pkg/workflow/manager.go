// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/llm"
	"github.com/example/krishimitra/pkg/metrics"
)

// Status is a Workflow's position in the pending -> running ->
// (completed | errored) state machine.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Errored   Status = "errored"
)

// SubtaskResult records the outcome of one executed subtask. Exactly
// one of Response/Err is set once Completed is true.
type SubtaskResult struct {
	OrderIndex int
	Completed  bool
	Response   string
	Err        string
}

// Workflow is a persistent record of a decomposed query and its
// ordered subtask executions. Mutated only by Manager's methods,
// which hold the workflow's own mutex for the duration of the
// mutation — per-workflow operations are serialized, but independent
// workflows run concurrently.
type Workflow struct {
	ID            string
	OriginalQuery string
	Subtasks      []intent.SubtaskSpec
	Completed     []SubtaskResult
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Summary       string

	// hash is the idempotency hash Start computed for this workflow's
	// (query, subtasks) pair. Immutable after creation; used to clean
	// up Manager.byHash when this workflow is evicted or reaped so
	// byHash doesn't grow unbounded alongside a capped/TTL'd registry.
	hash string

	mu sync.Mutex
}

// Snapshot is a read-only copy of a Workflow safe to hand to callers
// without exposing the internal mutex or letting them mutate shared
// state.
type Snapshot struct {
	ID            string
	OriginalQuery string
	Subtasks      []intent.SubtaskSpec
	Completed     []SubtaskResult
	Status        Status
	Progress      float64
	Summary       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (w *Workflow) snapshot() Snapshot {
	progress := 0.0
	if len(w.Subtasks) > 0 {
		progress = float64(len(w.Completed)) / float64(len(w.Subtasks))
	}
	return Snapshot{
		ID:            w.ID,
		OriginalQuery: w.OriginalQuery,
		Subtasks:      append([]intent.SubtaskSpec(nil), w.Subtasks...),
		Completed:     append([]SubtaskResult(nil), w.Completed...),
		Status:        w.Status,
		Progress:      progress,
		Summary:       w.Summary,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

// maxSubtasks caps how many subtasks Start accepts; more than this
// is rejected with InvalidArgument.
const maxSubtasks = 10

// Generator is the mini-pipeline a workflow subtask runs through:
// retrieve, then generate, under the subtask's own intent label.
// pkg/pipeline.Pipeline satisfies this (its Generate method has this
// exact signature), so a Manager and a Pipeline can share one
// Executor without pkg/workflow importing pkg/pipeline.
type Generator interface {
	Generate(ctx context.Context, query string, label intent.Label) (response, contextSummary string, err error)
}

// Config tunes a Manager's retention policy.
type Config struct {
	// TTL is how long a terminal (completed or errored) workflow is
	// retained before it becomes eligible for eviction. Zero means the
	// default of 1 hour.
	TTL time.Duration

	// Cap is the maximum number of active+terminal workflows retained
	// before LRU eviction of terminal workflows kicks in. Zero means
	// the default of 10,000.
	Cap int

	// StartIdempotencyWindow bounds how long an identical start() call
	// returns the same workflow_id. Zero reuses TTL.
	StartIdempotencyWindow time.Duration
}

// Manager is the workflow registry: it creates workflows, runs their
// subtasks in strict order, and synthesizes a final summary. Its
// in-memory map is shared across every caller; every access is
// guarded by mu.
type Manager struct {
	mu        sync.Mutex
	workflows map[string]*Workflow
	byHash    map[string]string // idempotency hash -> workflow_id, start-time-bounded

	gen llm.Provider
	run Generator

	ttl      time.Duration
	startTTL time.Duration
	cap      int

	stopCh chan struct{}
}

// NewManager builds a Manager. gen answers the finalize synthesis
// prompt; run executes each subtask's retrieve-and-generate step.
func NewManager(gen llm.Provider, run Generator, config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cap := config.Cap
	if cap <= 0 {
		cap = 10000
	}
	startTTL := config.StartIdempotencyWindow
	if startTTL <= 0 {
		startTTL = ttl
	}

	m := &Manager{
		workflows: make(map[string]*Workflow),
		byHash:    make(map[string]string),
		gen:       gen,
		run:       run,
		ttl:       ttl,
		startTTL:  startTTL,
		cap:       cap,
		stopCh:    make(chan struct{}),
	}
	return m
}

// RunReaper starts a background goroutine that evicts expired
// terminal workflows every interval, until ctx is cancelled or Stop is
// called. The caller owns the goroutine's lifetime by owning ctx.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.reapExpired()
			}
		}
	}()
}

// Stop ends the reaper goroutine started by RunReaper, if any.
func (m *Manager) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}

func (m *Manager) reapExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.workflows {
		w.mu.Lock()
		terminal := w.Status == Completed || w.Status == Errored
		expired := terminal && now.Sub(w.UpdatedAt) > m.ttl
		w.mu.Unlock()
		if expired {
			delete(m.workflows, id)
			delete(m.byHash, w.hash)
		}
	}
}

// startHash identifies a start() call by its observable inputs so
// that an identical retry within the idempotency window returns the
// same workflow_id instead of creating a duplicate.
func startHash(query string, subtasks []intent.SubtaskSpec) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	for _, s := range subtasks {
		fmt.Fprintf(h, "%d:%s:%s\x00", s.OrderIndex, s.IntentType, s.Description)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Start creates a workflow in pending status and assigns it a
// workflow_id. Calling Start again with an identical query and
// subtask list within the idempotency window returns the same id
// rather than creating a second workflow.
func (m *Manager) Start(query string, subtasks []intent.SubtaskSpec) (*Snapshot, error) {
	if len(subtasks) > maxSubtasks {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "workflow.Start",
			fmt.Sprintf("subtask count %d exceeds maximum of %d", len(subtasks), maxSubtasks))
	}
	if len(subtasks) < 2 {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "workflow.Start", "a workflow requires at least 2 subtasks")
	}

	sorted := append([]intent.SubtaskSpec(nil), subtasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	for i, s := range sorted {
		if s.OrderIndex != i {
			return nil, coreerrors.New(coreerrors.InvalidArgument, "workflow.Start", "subtask order_index must be contiguous from 0")
		}
	}

	hash := startHash(query, sorted)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byHash[hash]; ok {
		if w, ok := m.workflows[id]; ok {
			w.mu.Lock()
			recent := now.Sub(w.CreatedAt) <= m.startTTL
			snap := w.snapshot()
			w.mu.Unlock()
			if recent {
				return &snap, nil
			}
		}
	}

	id := uuid.New().String()
	w := &Workflow{
		ID:            id,
		OriginalQuery: query,
		Subtasks:      sorted,
		Status:        Pending,
		CreatedAt:     now,
		UpdatedAt:     now,
		hash:          hash,
	}
	m.workflows[id] = w
	m.byHash[hash] = id
	m.evictIfOverCapLocked()

	snap := w.snapshot()
	return &snap, nil
}

// evictIfOverCapLocked drops the least-recently-updated terminal
// workflows once the registry exceeds Cap. Called with m.mu held.
func (m *Manager) evictIfOverCapLocked() {
	if len(m.workflows) <= m.cap {
		return
	}
	var terminal []*Workflow
	for _, w := range m.workflows {
		w.mu.Lock()
		if w.Status == Completed || w.Status == Errored {
			terminal = append(terminal, w)
		}
		w.mu.Unlock()
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt) })
	for _, w := range terminal {
		if len(m.workflows) <= m.cap {
			return
		}
		delete(m.workflows, w.ID)
		delete(m.byHash, w.hash)
	}
}

func (m *Manager) lookup(workflowID string) (*Workflow, error) {
	m.mu.Lock()
	w, ok := m.workflows[workflowID]
	m.mu.Unlock()
	if !ok {
		return nil, coreerrors.New(coreerrors.NotFound, "workflow.lookup", fmt.Sprintf("workflow %q not found", workflowID))
	}
	return w, nil
}

// ExecuteSubtask runs the subtask at index through the mini-pipeline.
// index must equal the number of already-completed subtasks (strict
// sequential execution); any other value fails with OutOfOrder
// without mutating the workflow. A workflow already in errored status
// rejects every further call with WorkflowErrored.
func (m *Manager) ExecuteSubtask(ctx context.Context, workflowID string, index int) (*SubtaskResult, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Status == Errored {
		return nil, coreerrors.New(coreerrors.WorkflowErrored, "workflow.ExecuteSubtask", fmt.Sprintf("workflow %q is errored", workflowID))
	}
	if w.Status == Completed {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "workflow.ExecuteSubtask", fmt.Sprintf("workflow %q is already completed", workflowID))
	}
	if index != len(w.Completed) {
		return nil, coreerrors.New(coreerrors.OutOfOrder, "workflow.ExecuteSubtask",
			fmt.Sprintf("expected index %d, got %d", len(w.Completed), index))
	}
	if index >= len(w.Subtasks) {
		return nil, coreerrors.New(coreerrors.InvalidArgument, "workflow.ExecuteSubtask", "index beyond subtask count")
	}

	subtask := w.Subtasks[index]

	start := time.Now()
	response, _, genErr := m.run.Generate(ctx, subtask.Description, subtask.IntentType)
	metrics.RecordSubtaskDuration(time.Since(start))

	// Cancellation is not a subtask failure: the partial result is
	// discarded and the workflow stays in its prior state, per the
	// cooperative-cancellation contract.
	if genErr != nil && (coreerrors.KindOf(genErr) == coreerrors.Cancelled || errors.Is(genErr, context.Canceled)) {
		return nil, coreerrors.Wrap(coreerrors.Cancelled, "workflow.ExecuteSubtask", genErr)
	}

	w.UpdatedAt = time.Now()
	if w.Status == Pending {
		w.Status = Running
		metrics.RecordWorkflowTransition(string(Running))
	}

	if genErr != nil {
		result := SubtaskResult{OrderIndex: index, Completed: true, Err: genErr.Error()}
		w.Completed = append(w.Completed, result)
		w.Status = Errored
		metrics.RecordWorkflowTransition(string(Errored))
		slog.Warn("workflow subtask failed", "workflow_id", workflowID, "index", index, "error", genErr)
		return &result, nil
	}

	result := SubtaskResult{OrderIndex: index, Completed: true, Response: response}
	w.Completed = append(w.Completed, result)
	return &result, nil
}

const systemPromptSynthesis = `You are an agricultural assistant compiling the results of a multi-step question into one answer.

You are given the original question and the response produced for each of its steps. Combine
them into a single coherent answer that addresses every part of the original question. Do not
drop any step's finding and do not invent information beyond what the steps provided.`

// Finalize prompts the LLM with the original query and every
// subtask's response to produce a synthesis. It requires every
// subtask to have completed successfully; partial or errored
// workflows fail with Incomplete or WorkflowErrored respectively.
func (m *Manager) Finalize(ctx context.Context, workflowID string) (*Snapshot, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Status == Errored {
		return nil, coreerrors.New(coreerrors.WorkflowErrored, "workflow.Finalize", fmt.Sprintf("workflow %q is errored", workflowID))
	}
	if w.Status == Completed {
		// Already synthesized: return the stored summary instead of
		// paying for a second LLM call.
		snap := w.snapshot()
		return &snap, nil
	}
	if len(w.Completed) != len(w.Subtasks) {
		return nil, coreerrors.New(coreerrors.Incomplete, "workflow.Finalize",
			fmt.Sprintf("%d of %d subtasks completed", len(w.Completed), len(w.Subtasks)))
	}

	resp, genErr := m.gen.Complete(ctx, &llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPromptSynthesis},
			{Role: "user", Content: buildSynthesisPrompt(w)},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	w.UpdatedAt = time.Now()

	if genErr != nil {
		w.Status = Errored
		metrics.RecordWorkflowTransition(string(Errored))
		slog.Error("workflow synthesis failed", "workflow_id", workflowID, "error", genErr)
		return nil, coreerrors.Wrap(coreerrors.KindOf(genErr), "workflow.Finalize", genErr)
	}

	w.Summary = resp.Content
	w.Status = Completed
	metrics.RecordWorkflowTransition(string(Completed))
	snap := w.snapshot()
	return &snap, nil
}

func buildSynthesisPrompt(w *Workflow) string {
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(w.OriginalQuery)
	b.WriteString("\n\n")
	for _, r := range w.Completed {
		fmt.Fprintf(&b, "Step %d (%s): %s\n", r.OrderIndex+1, w.Subtasks[r.OrderIndex].Description, r.Response)
	}
	return b.String()
}

// Status returns a snapshot of workflowID's current state.
func (m *Manager) Status(workflowID string) (*Snapshot, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.snapshot()
	return &snap, nil
}

// Summary returns workflowID's synthesized summary. It fails with
// Incomplete if the workflow has not yet finished, or WorkflowErrored
// if it terminated in the errored state.
func (m *Manager) Summary(workflowID string) (*Snapshot, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.Status {
	case Errored:
		return nil, coreerrors.New(coreerrors.WorkflowErrored, "workflow.Summary", fmt.Sprintf("workflow %q is errored", workflowID))
	case Completed:
		snap := w.snapshot()
		return &snap, nil
	default:
		return nil, coreerrors.New(coreerrors.Incomplete, "workflow.Summary", fmt.Sprintf("workflow %q is not yet complete", workflowID))
	}
}
