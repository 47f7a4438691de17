// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/embedding"
	"github.com/example/krishimitra/pkg/intent"
	"github.com/example/krishimitra/pkg/metrics"
	"github.com/example/krishimitra/pkg/vectorstore"
)

// RetrievalContext is the assembled evidence for a query: the ordered
// hits, their scores (mirrored from Hits[i].Score for convenience),
// and a byte-budget-truncated concatenation of their content.
type RetrievalContext struct {
	Hits         []vectorstore.Document
	Scores       []float32
	AssembledText string
}

// Config tunes a Retriever's defaults.
type Config struct {
	// DefaultTopK is the global top-k budget K split across the
	// collections a route targets.
	DefaultTopK int

	// ByteBudget caps AssembledText's length. Defaults to 8192 (8 KiB).
	ByteBudget int
}

// Retriever assembles a RetrievalContext for a query and intent
// label, fanning out over the collections the routing table names.
type Retriever struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	topK     int
	budget   int

	// inflight collapses concurrent Retrieve calls for the same query
	// text and intent label into a single embed-then-search execution,
	// so a burst of identical requests (e.g. a flaky client retrying
	// inside the same window) doesn't fan out redundant searches.
	inflight singleflight.Group
}

// New creates a Retriever. A nil config applies the defaults
// (top_k=5, byte budget=8192).
func New(store vectorstore.Store, embedder embedding.Embedder, config *Config) *Retriever {
	if config == nil {
		config = &Config{}
	}
	topK := config.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	budget := config.ByteBudget
	if budget <= 0 {
		budget = 8192
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, budget: budget}
}

// Retrieve embeds query once, fans out to the collections label
// routes to, merges and normalizes scores, and truncates the
// assembled text to the byte budget. Empty hits are a valid, honest
// result (e.g. an unpopulated collection) and are returned without
// error.
func (r *Retriever) Retrieve(ctx context.Context, query string, label intent.Label) (*RetrievalContext, error) {
	return r.RetrieveK(ctx, query, label, r.topK)
}

// RetrieveK is Retrieve with an explicit top-k budget, used when the
// caller supplies a per-request override.
func (r *Retriever) RetrieveK(ctx context.Context, query string, label intent.Label, k int) (rc *RetrievalContext, err error) {
	if k <= 0 {
		k = r.topK
	}

	start := time.Now()
	defer func() {
		hits := 0
		if rc != nil {
			hits = len(rc.Hits)
		}
		metrics.RecordRetrieval(string(label), time.Since(start), hits)
	}()

	route := resolveRoute(label)

	if route.External {
		// The weather collaborator is out of scope for this core; its
		// payload would be merged in by the caller. From the
		// retriever's perspective this is a deliberately empty hit set.
		return &RetrievalContext{}, nil
	}

	targets := collectionsFor(route, k)
	if len(targets) == 0 {
		return &RetrievalContext{}, nil
	}

	key := fmt.Sprintf("%s\x00%d\x00%s", label, k, query)
	v, err, _ := r.inflight.Do(key, func() (interface{}, error) {
		return r.retrieveUncached(ctx, query, targets)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RetrievalContext), nil
}

// retrieveUncached embeds query once, fans out to targets concurrently,
// merges and normalizes scores, and truncates the assembled text to the
// byte budget. Called at most once per distinct (query, label, top-k)
// triple in flight at any moment; concurrent duplicates share this
// call's result via RetrieveK's singleflight.Group.
func (r *Retriever) retrieveUncached(ctx context.Context, query string, targets []target) (*RetrievalContext, error) {
	embedResp, err := r.embedder.Embed(ctx, &embedding.EmbedRequest{Texts: []string{query}})
	if err != nil {
		return nil, fmt.Errorf("retriever: embedding query: %w", err)
	}
	if len(embedResp.Vectors) == 0 {
		return nil, coreerrors.New(coreerrors.InternalError, "retriever.Retrieve", "embedder returned no vectors")
	}
	vector := embedResp.Vectors[0].Embedding

	filter := extractFilters(query)

	resultSets := make([][]vectorstore.Document, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			resp, err := r.store.Search(gctx, &vectorstore.SearchRequest{
				CollectionName: t.Collection,
				Vector:         vector,
				TopK:           t.K,
				Filter:         filter,
			})
			if err != nil {
				if coreerrors.KindOf(err) == coreerrors.NotFound {
					// Collection not yet populated: an honest empty
					// result, not a retrieval failure.
					slog.Warn("collection missing, returning empty hits", "degraded", true, "collection", t.Collection)
					resultSets[i] = nil
					return nil
				}
				return fmt.Errorf("retriever: searching %q: %w", t.Collection, err)
			}
			resultSets[i] = resp.Documents
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(resultSets) > 1 {
		for i := range resultSets {
			normalizeScores(resultSets[i])
		}
	}

	merged := mergeSorted(resultSets...)
	return assemble(merged, r.budget), nil
}

// assemble truncates docs to the byte budget, dropping lowest-scored
// items first (docs is already sorted descending by score, so this is
// a straightforward prefix scan), and builds the AssembledText.
func assemble(docs []vectorstore.Document, budget int) *RetrievalContext {
	const separator = "\n---\n"

	var kept []vectorstore.Document
	var text string
	used := 0

	for _, d := range docs {
		addition := d.Content
		if len(kept) > 0 {
			addition = separator + addition
		}
		if used+len(addition) > budget {
			break
		}
		text += addition
		used += len(addition)
		kept = append(kept, d)
	}

	scores := make([]float32, len(kept))
	for i, d := range kept {
		scores[i] = d.Score
	}

	return &RetrievalContext{Hits: kept, Scores: scores, AssembledText: text}
}
