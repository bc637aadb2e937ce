// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trapper"

var (
	// MessagesHandled counts inbound messages by connector and outcome
	// (command, trigger, learned, ignored, error).
	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "messages_total",
		Help:      "Inbound messages handled by the gateway",
	}, []string{"connector", "outcome"})

	TriggersMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "triggers_matched_total",
		Help:      "Messages answered by a trigger expression",
	})

	ExpressionsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "expressions_added_total",
		Help:      "Trigger expressions accepted",
	})

	// ParseFailures counts rejected trigger expressions. Labels: kind
	// (bad_separators, bad_parentheses, bad_characters, bad_operator, other).
	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "parse_failures_total",
		Help:      "Trigger expressions rejected by the parser",
	}, []string{"kind"})

	// SnapshotDocumentFailures counts documents that could not be read or
	// written. Labels: document, op (load, save).
	SnapshotDocumentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "document_failures_total",
		Help:      "Snapshot documents that failed to load or save",
	}, []string{"document", "op"})

	SnapshotSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "save_duration_seconds",
		Help:      "Time to write every snapshot document",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	ComponentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "heartbeat",
		Name:      "transitions_total",
		Help:      "Component state changes seen by the heartbeat monitor",
	}, []string{"component", "to"})
)
