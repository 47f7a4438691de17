// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/document/chunker"
	"github.com/example/krishimitra/pkg/embedding"
	"github.com/example/krishimitra/pkg/vectorstore"
)

// Pipeline chunks, embeds, and loads Records into a vectorstore.Store
// collection. It is the reference-dataset counterpart to
// pkg/retriever's read path: retriever reads collections this
// pipeline populates.
type Pipeline struct {
	Chunker  chunker.Chunker
	Embedder embedding.Embedder
	Store    vectorstore.Store
	Registry *Registry

	// BatchSize caps how many chunks are embedded in a single
	// Embedder.Embed call. Zero means embed everything in one call.
	BatchSize int
}

// Result summarizes one ingestion run.
type Result struct {
	Collection    string
	RecordCount   int
	ChunkCount    int
	InsertedCount int
}

// RunCollection loads, chunks, embeds, and rebuilds the named
// collection from its registered Source. The collection is replaced
// atomically via vectorstore.Store.Rebuild: readers never see a
// partially-loaded collection mid-ingest.
func (p *Pipeline) RunCollection(ctx context.Context, collection string) (*Result, error) {
	src, ok := p.Registry.Lookup(collection)
	if !ok {
		return nil, errUnknownCollection(collection)
	}

	records, err := src(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: loading collection %q: %w", collection, err)
	}

	return p.Run(ctx, collection, records)
}

// RunAll rebuilds every collection with a registered Source, in sorted
// name order. The first failure aborts the run; collections already
// rebuilt stay rebuilt (each Rebuild is atomic on its own).
func (p *Pipeline) RunAll(ctx context.Context) ([]*Result, error) {
	var results []*Result
	for _, collection := range p.Registry.Collections() {
		res, err := p.RunCollection(ctx, collection)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Run chunks, embeds, and rebuilds collection from records directly,
// bypassing the Registry. Useful for one-off loads and tests.
func (p *Pipeline) Run(ctx context.Context, collection string, records []Record) (*Result, error) {
	docs, err := p.toDocuments(ctx, collection, records)
	if err != nil {
		return nil, err
	}

	if _, err := p.Store.GetCollection(ctx, collection); err != nil {
		if coreerrors.KindOf(err) != coreerrors.NotFound {
			return nil, fmt.Errorf("ingest: checking collection %q: %w", collection, err)
		}
		if err := p.Store.CreateCollection(ctx, collection, p.Embedder.Dimensions(), map[string]interface{}{
			"source": "ingest",
		}); err != nil {
			return nil, fmt.Errorf("ingest: creating collection %q: %w", collection, err)
		}
	}

	if err := p.Store.Rebuild(ctx, collection, docs); err != nil {
		return nil, fmt.Errorf("ingest: rebuilding collection %q: %w", collection, err)
	}

	slog.Info("collection rebuilt", "collection", collection, "records", len(records), "chunks", len(docs))

	return &Result{
		Collection:    collection,
		RecordCount:   len(records),
		ChunkCount:    len(docs),
		InsertedCount: len(docs),
	}, nil
}

// toDocuments chunks every record's content and embeds the resulting
// chunks in batches of BatchSize, tagging each with provenance
// metadata back to its source record.
func (p *Pipeline) toDocuments(ctx context.Context, collection string, records []Record) ([]vectorstore.Document, error) {
	type pending struct {
		recordID string
		title    string
		chunk    chunker.Chunk
		extra    map[string]interface{}
	}

	var all []pending
	for _, rec := range records {
		chunks, err := p.Chunker.Chunk(rec.Content)
		if err != nil {
			return nil, fmt.Errorf("ingest: chunking record %q: %w", rec.ID, err)
		}
		for _, c := range chunks {
			all = append(all, pending{recordID: rec.ID, title: rec.Title, chunk: c, extra: rec.Metadata})
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = len(all)
	}

	docs := make([]vectorstore.Document, 0, len(all))
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.chunk.Text
		}

		resp, err := p.Embedder.Embed(ctx, &embedding.EmbedRequest{Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("ingest: embedding chunks %d-%d: %w", start, end, err)
		}
		if len(resp.Vectors) != len(batch) {
			return nil, coreerrors.New(coreerrors.InternalError, "ingest.toDocuments",
				fmt.Sprintf("embedder returned %d vectors for %d chunks", len(resp.Vectors), len(batch)))
		}

		for i, item := range batch {
			metadata := map[string]interface{}{
				"source_collection": collection,
				"record_id":         item.recordID,
				"title":             item.title,
				"chunk_index":       item.chunk.Index,
			}
			for k, v := range item.extra {
				metadata[k] = v
			}

			docs = append(docs, vectorstore.Document{
				ID:        uuid.New().String(),
				Content:   item.chunk.Text,
				Embedding: resp.Vectors[i].Embedding,
				Metadata:  metadata,
			})
		}
	}

	return docs, nil
}
