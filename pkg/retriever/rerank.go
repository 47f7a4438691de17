// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retriever

import (
	"sort"

	"github.com/example/krishimitra/pkg/vectorstore"
)

// normalizeScores rescales docs' scores to [0, 1] via min-max
// normalization, in place. Used before merging hits from more than
// one collection so that one collection's raw score range cannot
// dominate another's.
func normalizeScores(docs []vectorstore.Document) {
	if len(docs) == 0 {
		return
	}

	min, max := docs[0].Score, docs[0].Score
	for _, d := range docs {
		if d.Score < min {
			min = d.Score
		}
		if d.Score > max {
			max = d.Score
		}
	}

	spread := max - min
	if spread == 0 {
		for i := range docs {
			docs[i].Score = 1.0
		}
		return
	}

	for i := range docs {
		docs[i].Score = (docs[i].Score - min) / spread
	}
}

// mergeSorted concatenates doc sets and sorts the result by
// descending score. Runs over the union of several collections'
// results; normalizeScores must have run per set first when more
// than one collection contributes.
func mergeSorted(sets ...[]vectorstore.Document) []vectorstore.Document {
	var merged []vectorstore.Document
	for _, s := range sets {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}
