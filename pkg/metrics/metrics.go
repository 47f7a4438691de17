// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package metrics exposes Prometheus instrumentation for the core's
// hot paths: how often intent classification takes the heuristic fast
// path versus falling through to the LLM, how long retrieval takes
// per collection, and how workflows move through their state machine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimitra_classification_total",
		Help: "Count of intent classifications by path taken.",
	}, []string{"path"}) // path = "heuristic" | "llm" | "degraded"

	retrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "krishimitra_retrieval_duration_seconds",
		Help:    "Retriever.Retrieve latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	retrievalHits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "krishimitra_retrieval_hits",
		Help:    "Number of hits returned per Retriever.Retrieve call.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	workflowTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimitra_workflow_transitions_total",
		Help: "Count of workflow status transitions.",
	}, []string{"status"})

	workflowSubtaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "krishimitra_workflow_subtask_duration_seconds",
		Help:    "Duration of a single workflow_execute subtask call.",
		Buckets: prometheus.DefBuckets,
	})

	llmRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimitra_llm_retries_total",
		Help: "Count of LLM call retries by provider.",
	}, []string{"provider"})
)

// RecordClassification tags one Classifier.Classify call by which
// path produced its decision.
func RecordClassification(path string) {
	classificationTotal.WithLabelValues(path).Inc()
}

// RecordRetrieval records how long a Retriever.Retrieve call took for
// intentLabel and how many hits it returned.
func RecordRetrieval(intentLabel string, duration time.Duration, hits int) {
	retrievalDuration.WithLabelValues(intentLabel).Observe(duration.Seconds())
	retrievalHits.Observe(float64(hits))
}

// RecordWorkflowTransition tags one Workflow status change. status is
// the workflow.Status value stringified by the caller, so this
// package carries no dependency on pkg/workflow.
func RecordWorkflowTransition(status string) {
	workflowTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordSubtaskDuration records how long one execute_subtask call took.
func RecordSubtaskDuration(duration time.Duration) {
	workflowSubtaskDuration.Observe(duration.Seconds())
}

// RecordLLMRetry tags one retrypolicy retry attempt by provider name.
func RecordLLMRetry(provider string) {
	llmRetriesTotal.WithLabelValues(provider).Inc()
}
