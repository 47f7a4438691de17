// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retriever

import (
	"strings"
	"unicode"

	"github.com/example/krishimitra/pkg/vectorstore"
)

// knownCrops and knownDistricts are small curated lexicons used for
// heuristic entity extraction. A production deployment would load
// these from the reference dataset rather than hardcoding them, but
// the extraction algorithm itself does not depend on the lexicon's
// size.
var knownCrops = []string{
	"rice", "wheat", "tomato", "onion", "potato", "cotton", "sugarcane",
	"maize", "soybean", "groundnut", "mustard", "chili", "banana",
}

var knownDistricts = []string{
	"bargarh", "cuttack", "puri", "sambalpur", "balasore", "koraput",
	"ganjam", "kalahandi",
}

// extractFilters scans query for known crop and district names and
// returns a metadata filter built from the matches. Absence of a
// match leaves the corresponding key unset, which the store
// interprets as "no constraint". Keyword matching is deliberate: an
// LLM extraction pass here would put a network round trip on the hot
// path of every retrieval.
func extractFilters(query string) vectorstore.Filter {
	lower := strings.ToLower(query)
	filter := vectorstore.Filter{}

	// Match at word starts only, so "price" does not yield "rice"
	// while "tomatoes" still yields "tomato".
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	mentions := func(term string) bool {
		for _, w := range words {
			if strings.HasPrefix(w, term) {
				return true
			}
		}
		return false
	}

	for _, crop := range knownCrops {
		if mentions(crop) {
			filter["crop"] = crop
			break
		}
	}

	for _, district := range knownDistricts {
		if mentions(district) {
			filter["district"] = district
			break
		}
	}

	if len(filter) == 0 {
		return nil
	}
	return filter
}
