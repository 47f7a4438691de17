// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/krishimitra/pkg/llm"
	"github.com/example/krishimitra/pkg/metrics"
)

// lexicon maps high-signal tokens to the label they imply. Scanned in
// map order is fine: heuristicPass sums hits per label rather than
// stopping at the first match.
var lexicon = map[Label][]string{
	MarketPrice:      {"price", "mandi", "rate", "cost", "sell for", "market value"},
	Weather:          {"rain", "forecast", "weather", "temperature", "monsoon", "humidity"},
	PestControl:      {"pest", "insect", "disease", "fungus", "infestation", "spray"},
	Fertilizer:       {"fertilizer", "urea", "npk", "nutrient", "manure", "compost"},
	Soil:             {"soil", "ph level", "soil test", "loam", "drainage"},
	GovernmentScheme: {"scheme", "subsidy", "government", "yojana", "loan waiver"},
	CropAdvisory:     {"sow", "plant", "harvest", "crop rotation", "irrigation schedule", "advisory"},
}

// conjunctiveMarkers signal that a query spans more than one concern
// and should not take the heuristic fast path even when exactly one
// label wins on raw lexicon score.
var conjunctiveMarkers = []string{
	"and then", "compare", "both", "also tell", "as well as", "versus", " vs ",
}

// Classifier decides routing and complexity for a query. It tries a
// heuristic pre-pass first (cheap, no LLM round trip) and falls back
// to an LLM structured-output pass for ambiguous or conjunctive
// queries. The decision is always drawn from the closed taxonomy in
// types.go, never a free-form LLM choice.
type Classifier struct {
	llm llm.Provider
}

// NewClassifier creates a Classifier backed by llmProvider. llmProvider
// should already be wrapped with the retry policy (pkg/llm/retrypolicy)
// so that CompleteStructured's malformed-output retries happen beneath
// this layer.
func NewClassifier(llmProvider llm.Provider) *Classifier {
	return &Classifier{llm: llmProvider}
}

// Classify routes query in three stages: heuristic pre-pass, LLM
// pass, then validation/coercion.
func (c *Classifier) Classify(ctx context.Context, query string) Decision {
	if label, ok := c.heuristicPass(query); ok {
		metrics.RecordClassification("heuristic")
		return NewDecision(label, 0.9, nil)
	}

	decision, err := c.llmPass(ctx, query)
	if err != nil {
		// Degraded mode: the pipeline continues with a general-purpose
		// fan-out answer rather than failing the query.
		metrics.RecordClassification("degraded")
		slog.Warn("intent classification fell back to general", "degraded", true, "error", err)
		return Decision{Label: General, Confidence: 0.0, IsComplex: false}
	}

	metrics.RecordClassification("llm")
	return c.validate(decision)
}

// heuristicPass scans query for lexicon hits and reports a winning
// label only when exactly one label wins clearly (no other label
// within 0.1 of its score) and the query carries no conjunctive
// marker implying multiple concerns.
func (c *Classifier) heuristicPass(query string) (Label, bool) {
	lower := strings.ToLower(query)

	for _, marker := range conjunctiveMarkers {
		if strings.Contains(lower, marker) {
			return "", false
		}
	}

	scores := make(map[Label]float64)
	for label, tokens := range lexicon {
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				scores[label] += 1.0
			}
		}
	}

	if len(scores) == 0 {
		return "", false
	}

	var best Label
	var bestScore, secondScore float64
	for label, score := range scores {
		if score > bestScore {
			secondScore = bestScore
			best, bestScore = label, score
		} else if score > secondScore {
			secondScore = score
		}
	}

	if bestScore-secondScore < 0.1*bestScore {
		// Two labels within 0.1 of each other (scaled): fall through
		// to the LLM pass per the tie-break rule, unless best is the
		// only label present (secondScore stays 0 and the gap is the
		// full bestScore).
		if secondScore > 0 {
			return "", false
		}
	}

	return best, true
}

// structuredSchema is the JSON schema enforced by CompleteStructured
// for the classification pass.
var structuredSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"label":      map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number"},
		"is_complex": map[string]interface{}{"type": "boolean"},
		"subtasks":   map[string]interface{}{"type": "array"},
	},
	"required": []interface{}{"label", "confidence", "is_complex"},
}

const systemPromptClassifier = `You are an intent classification expert for an agricultural query-answering system.

Classify the user's query into exactly one label from this closed set:
market_price, weather, pest_control, fertilizer, soil, government_scheme, crop_advisory, general

Emit is_complex=true with at least 2 subtasks ONLY when the query cannot be answered by a
single retrieval-and-generation pass: it needs data from two or more collections, asks for a
comparison across dimensions (e.g. two crops, two districts), or has explicit sequencing
("first... then...").

Respond with ONLY a JSON object of the form:
{"label": "...", "confidence": 0.0, "is_complex": false, "subtasks": [{"description": "...", "intent_type": "...", "order_index": 0}]}

subtasks must be omitted or empty when is_complex is false. order_index must start at 0 and
increase by 1 for each subtask, in the order the subtasks should be executed.`

// llmPass prompts the LLM in structured-output mode and parses its
// JSON response into a Decision.
func (c *Classifier) llmPass(ctx context.Context, query string) (Decision, error) {
	resp, err := c.llm.CompleteStructured(ctx, &llm.StructuredRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPromptClassifier},
			{Role: "user", Content: query},
		},
		Schema:      structuredSchema,
		SchemaName:  "intent_decision",
		Temperature: 0.2,
		MaxTokens:   500,
		TimeoutMs:   45000,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("intent: structured classification failed: %w", err)
	}

	return parseDecisionResponse(resp.Content)
}

// rawDecision mirrors the LLM's JSON shape before taxonomy validation.
type rawDecision struct {
	Label      string        `json:"label"`
	Confidence float32       `json:"confidence"`
	IsComplex  bool          `json:"is_complex"`
	Subtasks   []rawSubtask  `json:"subtasks"`
}

type rawSubtask struct {
	Description string `json:"description"`
	IntentType  string `json:"intent_type"`
	OrderIndex  int    `json:"order_index"`
}

// parseDecisionResponse extracts the JSON object from content. LLM
// output occasionally wraps JSON in prose despite instructions; this
// takes the first '{'..last '}' span the same way planner.go's
// parsePlanResponse tolerates surrounding text.
func parseDecisionResponse(content string) (Decision, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return Decision{}, fmt.Errorf("intent: no JSON object found in response")
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Decision{}, fmt.Errorf("intent: invalid JSON in response: %w", err)
	}

	subtasks := make([]SubtaskSpec, 0, len(raw.Subtasks))
	for _, s := range raw.Subtasks {
		subtasks = append(subtasks, SubtaskSpec{
			Description: s.Description,
			IntentType:  Label(s.IntentType),
			OrderIndex:  s.OrderIndex,
		})
	}

	return Decision{
		Label:      Label(raw.Label),
		Confidence: raw.Confidence,
		IsComplex:  raw.IsComplex,
		Subtasks:   subtasks,
	}, nil
}

// validate applies the coercion rules to an LLM-produced Decision:
// unknown labels become general, low confidence demotes the label but
// preserves complexity, and an is_complex claim with fewer than 2
// subtasks is coerced to simple.
func (c *Classifier) validate(d Decision) Decision {
	for i := range d.Subtasks {
		if !IsKnown(d.Subtasks[i].IntentType) {
			d.Subtasks[i].IntentType = General
		}
	}

	if d.IsComplex && len(d.Subtasks) < 2 {
		d.IsComplex = false
		d.Subtasks = nil
	}

	if !d.IsComplex {
		d.Subtasks = nil
	} else {
		for i := range d.Subtasks {
			d.Subtasks[i].OrderIndex = i
		}
	}

	if d.Confidence < 0.3 {
		d.Label = General
	} else if !IsKnown(d.Label) && d.Label != Complex {
		d.Label = General
	}

	return d
}
