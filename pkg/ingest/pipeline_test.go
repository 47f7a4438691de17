// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package ingest

import (
	"context"
	"testing"

	"github.com/example/krishimitra/pkg/coreerrors"
	"github.com/example/krishimitra/pkg/document/chunker"
	"github.com/example/krishimitra/pkg/embedding"
	"github.com/example/krishimitra/pkg/vectorstore"
)

type mockEmbedder struct{ dim int }

func (m *mockEmbedder) Embed(ctx context.Context, req *embedding.EmbedRequest) (*embedding.EmbedResponse, error) {
	vecs := make([]embedding.Vector, len(req.Texts))
	for i, t := range req.Texts {
		vecs[i] = embedding.Vector{Embedding: make([]float32, m.dim), Text: t}
	}
	return &embedding.EmbedResponse{Vectors: vecs}, nil
}
func (m *mockEmbedder) Dimensions() int   { return m.dim }
func (m *mockEmbedder) ModelName() string { return "mock" }

// recordingStore tracks the collections created and the documents each
// Rebuild received.
type recordingStore struct {
	created   map[string]int
	rebuilt   map[string][]vectorstore.Document
	existing  map[string]bool
}

func newRecordingStore(existing ...string) *recordingStore {
	s := &recordingStore{
		created:  make(map[string]int),
		rebuilt:  make(map[string][]vectorstore.Document),
		existing: make(map[string]bool),
	}
	for _, name := range existing {
		s.existing[name] = true
	}
	return s
}

func (s *recordingStore) Insert(ctx context.Context, req *vectorstore.InsertRequest) (*vectorstore.InsertResponse, error) {
	return &vectorstore.InsertResponse{}, nil
}
func (s *recordingStore) Search(ctx context.Context, req *vectorstore.SearchRequest) (*vectorstore.SearchResponse, error) {
	return &vectorstore.SearchResponse{}, nil
}
func (s *recordingStore) Delete(ctx context.Context, req *vectorstore.DeleteRequest) (*vectorstore.DeleteResponse, error) {
	return &vectorstore.DeleteResponse{}, nil
}
func (s *recordingStore) Get(ctx context.Context, collection string, ids []string) ([]vectorstore.Document, error) {
	return nil, nil
}
func (s *recordingStore) CreateCollection(ctx context.Context, name string, dim int, metadata map[string]interface{}) error {
	s.created[name] = dim
	s.existing[name] = true
	return nil
}
func (s *recordingStore) DeleteCollection(ctx context.Context, name string) error { return nil }
func (s *recordingStore) ListCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	return nil, nil
}
func (s *recordingStore) GetCollection(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	if !s.existing[name] {
		return nil, coreerrors.New(coreerrors.NotFound, "mock.GetCollection", "no such collection")
	}
	return &vectorstore.CollectionInfo{Name: name}, nil
}
func (s *recordingStore) Rebuild(ctx context.Context, name string, docs []vectorstore.Document) error {
	s.rebuilt[name] = docs
	return nil
}
func (s *recordingStore) Close() error { return nil }
func (s *recordingStore) Name() string { return "mock" }

func testPipeline(store *recordingStore) *Pipeline {
	return &Pipeline{
		Chunker:  chunker.NewChunker(nil),
		Embedder: &mockEmbedder{dim: 4},
		Store:    store,
		Registry: NewRegistry(),
	}
}

func TestRunCreatesMissingCollection(t *testing.T) {
	store := newRecordingStore()
	p := testPipeline(store)

	result, err := p.Run(context.Background(), "prices", []Record{
		{ID: "r1", Title: "tomato", Content: "tomato Bargarh 1800/quintal", Metadata: map[string]interface{}{"crop": "tomato"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if dim, ok := store.created["prices"]; !ok || dim != 4 {
		t.Errorf("created = %v, want prices with dim 4", store.created)
	}
	if result.RecordCount != 1 || result.ChunkCount < 1 {
		t.Errorf("result = %+v, want 1 record and >=1 chunk", result)
	}

	docs := store.rebuilt["prices"]
	if len(docs) != result.ChunkCount {
		t.Fatalf("rebuilt %d docs, want %d", len(docs), result.ChunkCount)
	}
	if docs[0].Metadata["source_collection"] != "prices" {
		t.Errorf("source_collection = %v, want prices", docs[0].Metadata["source_collection"])
	}
	if docs[0].Metadata["crop"] != "tomato" {
		t.Errorf("record metadata not propagated: %v", docs[0].Metadata)
	}
}

func TestRunSkipsCreateWhenCollectionExists(t *testing.T) {
	store := newRecordingStore("soil")
	p := testPipeline(store)

	if _, err := p.Run(context.Background(), "soil", []Record{
		{ID: "r1", Content: "loam drains well"},
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.created) != 0 {
		t.Errorf("created = %v, want no CreateCollection calls", store.created)
	}
}

func TestRunCollectionUnknownSource(t *testing.T) {
	p := testPipeline(newRecordingStore())

	_, err := p.RunCollection(context.Background(), "nonexistent")
	if coreerrors.KindOf(err) != coreerrors.NotFound {
		t.Errorf("KindOf(err) = %v, want NotFound", coreerrors.KindOf(err))
	}
}

func TestRunAllRebuildsEveryRegisteredCollection(t *testing.T) {
	store := newRecordingStore()
	p := testPipeline(store)

	p.Registry.Register("schemes", func(ctx context.Context) ([]Record, error) {
		return []Record{{ID: "s1", Content: "PM-KISAN income support"}}, nil
	})
	p.Registry.Register("prices", func(ctx context.Context) ([]Record, error) {
		return []Record{{ID: "p1", Content: "onion Cuttack 1200/quintal"}}, nil
	})

	results, err := p.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	// Registry.Collections is sorted, so prices comes before schemes.
	if results[0].Collection != "prices" || results[1].Collection != "schemes" {
		t.Errorf("collections = [%s %s], want [prices schemes]", results[0].Collection, results[1].Collection)
	}
	if len(store.rebuilt) != 2 {
		t.Errorf("rebuilt = %v, want both collections", store.rebuilt)
	}
}
