// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package intent classifies a query into a routing label and decides
// whether it requires a decomposed multi-step workflow. It is the
// entry point of the agricultural query-answering core: every query
// passes through a Classifier before retrieval or generation happens.
package intent

// Label identifies a query's routing category. The taxonomy is closed
// but extensible: adding a label means adding it to the lexicon, the
// routing table in pkg/retriever, and the LLM prompt's schema.
type Label string

const (
	MarketPrice      Label = "market_price"
	Weather          Label = "weather"
	PestControl      Label = "pest_control"
	Fertilizer       Label = "fertilizer"
	Soil             Label = "soil"
	GovernmentScheme Label = "government_scheme"
	CropAdvisory     Label = "crop_advisory"
	General          Label = "general"
	Complex          Label = "complex"
)

// knownLabels is used to validate LLM output and heuristic matches.
var knownLabels = map[Label]bool{
	MarketPrice:      true,
	Weather:          true,
	PestControl:      true,
	Fertilizer:       true,
	Soil:             true,
	GovernmentScheme: true,
	CropAdvisory:     true,
	General:          true,
}

// IsKnown reports whether l is one of the closed taxonomy's routing
// labels (Complex is a classification outcome, not a routing target,
// so it is deliberately excluded).
func IsKnown(l Label) bool {
	return knownLabels[l]
}

// SubtaskSpec describes one step of a decomposed complex query.
// OrderIndex is contiguous from 0 and strictly increasing within the
// subtask list that produced it.
type SubtaskSpec struct {
	Description string `json:"description"`
	IntentType  Label  `json:"intent_type"`
	OrderIndex  int    `json:"order_index"`
}

// Decision is the output of classification: a routing label plus,
// for complex queries, the subtask list the caller's WorkflowManager
// should execute.
type Decision struct {
	Label      Label         `json:"label"`
	Confidence float32       `json:"confidence"`
	IsComplex  bool          `json:"is_complex"`
	Subtasks   []SubtaskSpec `json:"subtasks,omitempty"`
}

// NewDecision constructs a Decision. A decision with is_complex=true
// but fewer than two subtasks is coerced to is_complex=false rather
// than rejected, since a single-subtask "complex" query is answerable
// by the single-shot pipeline anyway.
func NewDecision(label Label, confidence float32, subtasks []SubtaskSpec) Decision {
	d := Decision{Label: label, Confidence: confidence, Subtasks: subtasks}
	d.IsComplex = len(subtasks) >= 2
	if !d.IsComplex {
		d.Subtasks = nil
	}
	return d
}
