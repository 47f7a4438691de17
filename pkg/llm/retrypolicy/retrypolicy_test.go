// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrypolicy

import (
	"context"
	"testing"
	"time"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/llm"
)

type stubProvider struct {
	completeResponses []*llm.CompletionResponse
	completeErrs      []error
	structuredCalls   int
	structuredOutputs []string
}

func (s *stubProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := len(s.completeResponses) - len(s.completeErrs)
	_ = i
	idx := s.structuredCalls
	s.structuredCalls++
	if idx < len(s.completeErrs) && s.completeErrs[idx] != nil {
		return nil, s.completeErrs[idx]
	}
	if idx < len(s.completeResponses) {
		return s.completeResponses[idx], nil
	}
	return &llm.CompletionResponse{Content: "ok"}, nil
}

func (s *stubProvider) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	idx := s.structuredCalls
	s.structuredCalls++
	if idx >= len(s.structuredOutputs) {
		idx = len(s.structuredOutputs) - 1
	}
	return &llm.CompletionResponse{Content: s.structuredOutputs[idx]}, nil
}

func (s *stubProvider) Name() string            { return "stub" }
func (s *stubProvider) ModelName() string       { return "stub-model" }
func (s *stubProvider) SupportsStreaming() bool { return false }

func fastPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Millisecond, CapDelay: 5 * time.Millisecond}
}

func TestCompleteStructured_RetriesOnMalformedOutput(t *testing.T) {
	inner := &stubProvider{
		structuredOutputs: []string{
			`not json`,
			`{"label":"market_price"}`,
		},
	}
	p := Wrap(inner, fastPolicy())

	resp, err := p.CompleteStructured(context.Background(), &llm.StructuredRequest{
		Messages: []llm.Message{{Role: "user", Content: "classify"}},
		Schema:   map[string]interface{}{"required": []interface{}{"label"}},
	})
	if err != nil {
		t.Fatalf("CompleteStructured() error = %v", err)
	}
	if resp.Content != `{"label":"market_price"}` {
		t.Errorf("CompleteStructured() content = %v", resp.Content)
	}
	if inner.structuredCalls != 2 {
		t.Errorf("structuredCalls = %d, want 2", inner.structuredCalls)
	}
}

func TestCompleteStructured_FailsAfterMaxRetries(t *testing.T) {
	inner := &stubProvider{
		structuredOutputs: []string{`not json`, `still not json`, `nope`, `nope again`},
	}
	p := Wrap(inner, Policy{MaxRetries: 2, BaseDelay: time.Millisecond, CapDelay: 2 * time.Millisecond})

	_, err := p.CompleteStructured(context.Background(), &llm.StructuredRequest{
		Messages: []llm.Message{{Role: "user", Content: "classify"}},
		Schema:   map[string]interface{}{"required": []interface{}{"label"}},
	})
	if coreerrors.KindOf(err) != coreerrors.SchemaViolation {
		t.Fatalf("CompleteStructured() kind = %v, want SchemaViolation", coreerrors.KindOf(err))
	}
}

func TestCompleteStructured_MissingRequiredFieldIsViolation(t *testing.T) {
	inner := &stubProvider{structuredOutputs: []string{`{"confidence":0.5}`}}
	p := Wrap(inner, Policy{MaxRetries: 0, BaseDelay: time.Millisecond, CapDelay: time.Millisecond})

	_, err := p.CompleteStructured(context.Background(), &llm.StructuredRequest{
		Messages: []llm.Message{{Role: "user", Content: "classify"}},
		Schema:   map[string]interface{}{"required": []interface{}{"label"}},
	})
	if coreerrors.KindOf(err) != coreerrors.SchemaViolation {
		t.Fatalf("kind = %v, want SchemaViolation", coreerrors.KindOf(err))
	}
}

func TestComplete_NonRetryableFailsImmediately(t *testing.T) {
	inner := &stubProvider{completeErrs: []error{coreerrors.New(coreerrors.UpstreamAuth, "stub.Complete", "bad key")}}
	p := Wrap(inner, fastPolicy())

	_, err := p.Complete(context.Background(), &llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
	if coreerrors.KindOf(err) != coreerrors.UpstreamAuth {
		t.Fatalf("kind = %v, want UpstreamAuth", coreerrors.KindOf(err))
	}
	if inner.structuredCalls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", inner.structuredCalls)
	}
}
