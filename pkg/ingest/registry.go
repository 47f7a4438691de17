// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package ingest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/krishimitra/pkg/coreerrors"
)

// Registry maps a collection name to the Source that can (re)load its
// reference records. One process-wide Registry is built at startup
// and used by System.RebuildIndex through Pipeline.RunCollection and
// Pipeline.RunAll; the `ingest` CLI subcommand does not go through it.
type Registry struct {
	mu      sync.Mutex
	sources map[string]Source
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register associates collection with src, overwriting any prior
// registration for the same collection.
func (r *Registry) Register(collection string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[collection] = src
}

// Lookup returns the Source registered for collection, if any.
func (r *Registry) Lookup(collection string) (Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[collection]
	return src, ok
}

// Collections returns the registered collection names in sorted order.
func (r *Registry) Collections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// errUnknownCollection is returned by Pipeline.RunCollection when no
// Source is registered for the requested collection.
func errUnknownCollection(collection string) error {
	return coreerrors.New(coreerrors.NotFound, "ingest.RunCollection", fmt.Sprintf("no source registered for collection %q", collection))
}
