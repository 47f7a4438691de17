// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package retrypolicy wraps any llm.Provider with the core's retry
// contract: transient upstream failures and malformed structured
// output are retried up to a fixed count with exponential backoff;
// authentication, quota, and content-policy failures are surfaced
// immediately without retry.
package retrypolicy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/llm"
	"github.com/example/krishimitra/pkg/metrics"
)

// Policy configures retry behavior. Zero values fall back to the
// defaults (N=3, base 500ms, cap 4s).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	CapDelay   time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, CapDelay: 4 * time.Second}
}

// Provider wraps an underlying llm.Provider with the retry policy.
type Provider struct {
	inner  llm.Provider
	policy Policy
}

// Wrap returns a Provider applying policy on top of inner. A zero
// Policy is replaced with DefaultPolicy.
func Wrap(inner llm.Provider, policy Policy) *Provider {
	if policy.MaxRetries == 0 {
		policy.MaxRetries = DefaultPolicy().MaxRetries
	}
	if policy.BaseDelay == 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	if policy.CapDelay == 0 {
		policy.CapDelay = DefaultPolicy().CapDelay
	}
	return &Provider{inner: inner, policy: policy}
}

func (p *Provider) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.policy.BaseDelay
	b.MaxInterval = p.policy.CapDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed time
	capped := backoff.WithMaxRetries(b, uint64(p.policy.MaxRetries))
	return backoff.WithContext(capped, ctx)
}

// isRetryable reports whether err is a transient upstream failure
// that should be retried. Auth, quota, and content-policy failures
// never are.
func isRetryable(err error) bool {
	switch coreerrors.KindOf(err) {
	case coreerrors.UpstreamUnavailable, coreerrors.UpstreamBusy:
		return true
	case coreerrors.SchemaViolation:
		return true
	default:
		return false
	}
}

// Complete retries transient failures (coreerrors.UpstreamUnavailable /
// UpstreamBusy) up to policy.MaxRetries with exponential backoff.
// Auth/quota/content-policy failures are returned immediately.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	attempt := 0

	op := func() error {
		attempt++
		var err error
		resp, err = p.inner.Complete(ctx, req)
		if err != nil {
			if !isRetryable(err) || attempt > p.policy.MaxRetries {
				return backoff.Permanent(err)
			}
			metrics.RecordLLMRetry(p.inner.Name())
			slog.Warn("llm completion retrying", "provider", p.inner.Name(), "attempt", attempt, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, p.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// CompleteStructured retries malformed output and transient failures
// up to policy.MaxRetries, feeding the validation failure back into
// the next attempt's prompt as corrective context.
func (p *Provider) CompleteStructured(ctx context.Context, req *llm.StructuredRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	attempt := 0
	currentReq := *req

	op := func() error {
		attempt++
		out, err := p.inner.CompleteStructured(ctx, &currentReq)
		if err != nil {
			if !isRetryable(err) || attempt > p.policy.MaxRetries {
				return backoff.Permanent(err)
			}
			metrics.RecordLLMRetry(p.inner.Name())
			return err
		}

		if verr := validateAgainstSchema(out.Content, req.Schema); verr != nil {
			violation := coreerrors.Wrap(coreerrors.SchemaViolation, "retrypolicy.CompleteStructured", verr)
			if attempt > p.policy.MaxRetries {
				return backoff.Permanent(violation)
			}
			metrics.RecordLLMRetry(p.inner.Name())
			slog.Warn("llm structured output invalid, retrying", "provider", p.inner.Name(), "attempt", attempt, "error", verr)
			currentReq.Messages = append(req.Messages, llm.Message{
				Role: "user",
				Content: fmt.Sprintf("Your previous output was invalid because: %v. Respond again with ONLY valid JSON matching the requested schema.", verr),
			})
			return violation
		}

		resp = out
		return nil
	}

	if err := backoff.Retry(op, p.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// validateAgainstSchema performs a structural check: content must be
// valid JSON and must contain every property schema marks as
// required. Intentionally lightweight; it catches the malformed
// outputs that actually occur (prose instead of JSON, missing
// fields) without a full JSON-Schema validator.
func validateAgainstSchema(content string, schema map[string]interface{}) error {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("output is not a JSON object: %w", err)
	}

	required, _ := schema["required"].([]interface{})
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := doc[key]; !present {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}

// Name returns the underlying provider's name.
func (p *Provider) Name() string { return p.inner.Name() }

// ModelName returns the underlying provider's model.
func (p *Provider) ModelName() string { return p.inner.ModelName() }

// SupportsStreaming delegates to the underlying provider.
func (p *Provider) SupportsStreaming() bool { return p.inner.SupportsStreaming() }

var _ llm.Provider = (*Provider)(nil)
