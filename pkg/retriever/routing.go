// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package retriever assembles evidence for a query given its intent
// label: it selects one or more collections, builds a metadata
// filter, fans out searches, merges and normalizes scores, and
// truncates the result to a byte budget.
package retriever

import "github.com/example/krishimitra/pkg/intent"

// route names the collections a label searches: primary always
// participates, secondary collections receive a smaller share of the
// top-k budget.
type route struct {
	Primary   string
	Secondary []string
	// FanOut lists collections searched in parallel with no single
	// "primary" weighting; used for crop_advisory and general.
	FanOut []string
	// External marks labels handled entirely by an out-of-scope
	// collaborator (the weather proxy); no vector search happens.
	External bool
}

// routingTable is the declarative intent-to-collection mapping.
// Collection names are those of the reference datasets (prices,
// soil, pest_control, fertilizers, schemes), not the intent labels.
var routingTable = map[intent.Label]route{
	intent.MarketPrice:      {Primary: "prices", Secondary: []string{"schemes"}},
	intent.Weather:          {External: true},
	intent.PestControl:      {Primary: "pest_control"},
	intent.Fertilizer:       {Primary: "fertilizers", Secondary: []string{"soil"}},
	intent.Soil:             {Primary: "soil"},
	intent.GovernmentScheme: {Primary: "schemes"},
	intent.CropAdvisory:     {FanOut: []string{"fertilizers", "soil", "pest_control"}},
	intent.General:          {FanOut: []string{"prices", "pest_control", "fertilizers", "soil", "schemes"}},
}

// resolveRoute returns the route for label, falling back to General's
// fan-out when label is unrecognized (should not happen once the
// classifier's coercion rules have run, but keeps Retrieve total).
func resolveRoute(label intent.Label) route {
	if r, ok := routingTable[label]; ok {
		return r
	}
	return routingTable[intent.General]
}

// collectionsFor expands a route into targets each carrying its share
// of a top-k budget K: the primary collection gets ceil(0.6*K), each
// secondary gets the remainder split evenly. Fan-out collections
// split K evenly among themselves.
type target struct {
	Collection string
	K          int
}

func collectionsFor(r route, k int) []target {
	if len(r.FanOut) > 0 {
		per := k / len(r.FanOut)
		if per < 1 {
			per = 1
		}
		targets := make([]target, 0, len(r.FanOut))
		for _, c := range r.FanOut {
			targets = append(targets, target{Collection: c, K: per})
		}
		return targets
	}

	if r.Primary == "" {
		return nil
	}

	primaryK := (k*6 + 9) / 10 // ceil(0.6*k)
	if primaryK < 1 {
		primaryK = 1
	}
	targets := []target{{Collection: r.Primary, K: primaryK}}

	if len(r.Secondary) == 0 {
		return targets
	}

	remaining := k - primaryK
	if remaining < 0 {
		remaining = 0
	}
	per := remaining / len(r.Secondary)
	for _, c := range r.Secondary {
		targets = append(targets, target{Collection: c, K: per})
	}
	return targets
}
