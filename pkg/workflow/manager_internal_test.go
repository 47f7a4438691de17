// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/llm"
)

// noopLLM is a Provider stub sufficient for tests that never reach
// Finalize's synthesis call.
type noopLLM struct{}

func (noopLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}
func (noopLLM) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}
func (noopLLM) Name() string           { return "noop" }
func (noopLLM) ModelName() string      { return "noop" }
func (noopLLM) SupportsStreaming() bool { return false }

// noopGenerator is a Generator stub sufficient for tests that never
// execute a subtask.
type noopGenerator struct{}

func (noopGenerator) Generate(ctx context.Context, query string, label intent.Label) (string, string, error) {
	return "", "", nil
}

func testSubtasks() []intent.SubtaskSpec {
	return []intent.SubtaskSpec{
		{Description: "a", IntentType: intent.Soil, OrderIndex: 0},
		{Description: "b", IntentType: intent.Soil, OrderIndex: 1},
	}
}

// TestReapExpiredClearsByHash guards against the idempotency index
// outliving the workflow it points to: once a terminal workflow ages
// past TTL and is reaped, its byHash entry must go with it, or byHash
// grows without bound even though workflows itself is capped by TTL.
func TestReapExpiredClearsByHash(t *testing.T) {
	m := NewManager(noopLLM{}, noopGenerator{}, &Config{TTL: time.Millisecond})

	if _, err := m.Start("what is the soil ph here and what fertilizer should I use", testSubtasks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(m.byHash) != 1 {
		t.Fatalf("byHash entries = %d, want 1 after Start", len(m.byHash))
	}

	m.mu.Lock()
	for _, w := range m.workflows {
		w.Status = Completed
		w.UpdatedAt = time.Now().Add(-time.Hour)
	}
	m.mu.Unlock()

	m.reapExpired()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.workflows) != 0 {
		t.Errorf("workflows = %d, want 0 after reap", len(m.workflows))
	}
	if len(m.byHash) != 0 {
		t.Errorf("byHash = %d, want 0 after reap: byHash entry outlived its workflow", len(m.byHash))
	}
}

// TestEvictIfOverCapClearsByHash mirrors the above for capacity-driven
// eviction: dropping a terminal workflow to respect Cap must also drop
// its byHash entry.
func TestEvictIfOverCapClearsByHash(t *testing.T) {
	m := NewManager(noopLLM{}, noopGenerator{}, &Config{Cap: 1})

	if _, err := m.Start("price of tomato in Bargarh today", testSubtasks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.mu.Lock()
	for _, w := range m.workflows {
		w.Status = Completed
		w.UpdatedAt = time.Now().Add(-time.Hour)
	}
	m.mu.Unlock()

	// Starting a second, distinct workflow pushes the registry over Cap
	// and triggers evictIfOverCapLocked internally.
	if _, err := m.Start("fertilizer advice for wheat in sandy soil", testSubtasks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.workflows) != 1 {
		t.Errorf("workflows = %d, want 1 after over-cap eviction", len(m.workflows))
	}
	if len(m.byHash) != 1 {
		t.Errorf("byHash = %d, want 1 after over-cap eviction: evicted workflow's byHash entry leaked", len(m.byHash))
	}
}
