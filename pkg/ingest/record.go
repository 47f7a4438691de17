// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package ingest turns already-parsed agricultural reference records
// (market price sheets, soil advisories, pest-control notes, fertilizer
// guides, scheme descriptions) into chunked, embedded
// vectorstore.Document batches and loads them into a collection.
//
// CSV parsing and any other source-file format are the caller's
// responsibility; this package starts from Record, not from bytes on
// disk.
package ingest

import "context"

// Record is a single reference document ready for chunking and
// embedding. Collection names the target vectorstore collection
// (e.g. "prices", "soil", "pest_control", "fertilizers",
// "schemes").
type Record struct {
	ID         string
	Collection string
	Title      string
	Content    string
	Metadata   map[string]interface{}
}

// Source produces the records for one collection. Registering a
// Source lets `ingest` rebuild a collection from its canonical data
// without the caller re-wiring the loading logic each time.
type Source func(ctx context.Context) ([]Record, error)
