// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package chunker

import "strings"

// Chunk represents a single chunk of text with its position information.
type Chunk struct {
	Index    int
	Text     string
	StartPos int
	EndPos   int
	Metadata map[string]interface{}
}

// Chunker defines the interface for document chunking strategies.
type Chunker interface {
	// Chunk splits content into chunks and attaches metadata.
	Chunk(content string) ([]Chunk, error)

	// Name returns the chunking strategy name.
	Name() string
}

// ChunkerConfig contains configuration for chunking strategies.
type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns default chunking configuration.
func DefaultConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize:    1000,
		ChunkOverlap: 150,
	}
}

// NewChunker creates a sliding-window chunker with the given config.
// Reference records ingested by pkg/ingest are record-sized (one row
// or entry per document), so a single fixed-size strategy with
// overlap is enough; there is no long-document hierarchy to chunk by
// section or semantic region.
func NewChunker(config *ChunkerConfig) Chunker {
	if config == nil {
		config = DefaultConfig()
	}
	return NewSlidingWindowChunker(config)
}

// Helper functions

// splitPreservingWords splits text at word boundaries.
func splitPreservingWords(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)
	current := ""

	for _, word := range words {
		test := current
		if current != "" {
			test += " "
		}
		test += word

		if len(test) > maxSize && current != "" {
			chunks = append(chunks, current)
			current = word
		} else {
			current = test
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// attachMetadata tags each chunk with its position and the chunking
// method that produced it.
func attachMetadata(chunks []Chunk, methodName string) []Chunk {
	for i := range chunks {
		chunks[i].Metadata = map[string]interface{}{
			"chunk_method": methodName,
			"chunk_index":  chunks[i].Index,
		}
	}
	return chunks
}
