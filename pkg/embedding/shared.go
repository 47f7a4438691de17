// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package embedding

import (
	"context"
	"sync"
)

// SharedEmbedder wraps an Embedder so that any one-time warmup cost
// (model load, connection priming) happens exactly once, behind a
// sync.Once latch, regardless of how many goroutines race to use it
// first. Construct it during process startup and hand the same
// instance to every caller; do not lazily construct one per request.
type SharedEmbedder struct {
	inner Embedder
	once  sync.Once
	warm  func(context.Context) error
	err   error
}

// NewSharedEmbedder wraps inner. warm may be nil if the embedder needs
// no explicit warmup beyond construction.
func NewSharedEmbedder(inner Embedder, warm func(context.Context) error) *SharedEmbedder {
	return &SharedEmbedder{inner: inner, warm: warm}
}

// Warmup runs the one-time initialization if it hasn't run yet. Safe
// to call from multiple goroutines; only the first call's warm func
// actually executes, the rest block until it completes and observe
// its result.
func (s *SharedEmbedder) Warmup(ctx context.Context) error {
	s.once.Do(func() {
		if s.warm != nil {
			s.err = s.warm(ctx)
		}
	})
	return s.err
}

// Embed warms up the embedder on first use, then delegates.
func (s *SharedEmbedder) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	if err := s.Warmup(ctx); err != nil {
		return nil, err
	}
	return s.inner.Embed(ctx, req)
}

// Dimensions delegates to the wrapped embedder.
func (s *SharedEmbedder) Dimensions() int { return s.inner.Dimensions() }

// ModelName delegates to the wrapped embedder.
func (s *SharedEmbedder) ModelName() string { return s.inner.ModelName() }

var _ Embedder = (*SharedEmbedder)(nil)
