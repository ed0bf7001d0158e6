// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package nodemonitor implements C3: a background loop that observes node
// readiness and taints, applies hysteresis, and emits capacity events.
package nodemonitor

import "time"

// Node is the NodeState record from spec.md §3. NodeMonitor is its
// exclusive writer; every other component only ever sees a Snapshot copy.
type Node struct {
	Name             string
	Ready            bool
	Schedulable      bool
	Taints           []string
	LastTransitionTS time.Time
	Quarantined      bool

	// notReadySince is zero while the node is ready; it is set the first
	// time a not-ready observation is seen and cleared on recovery. It
	// drives the not_ready_grace hysteresis from spec.md §4.3.
	notReadySince time.Time
	readySince    time.Time
}

// EventKind enumerates the capacity events NodeMonitor emits onto its
// event channel, consumed by NodeScaler without either holding a
// reference to the other (spec.md §9's cyclic-reference note).
type EventKind string

const (
	NodeLost         EventKind = "NodeLost"
	NodeRecovered    EventKind = "NodeRecovered"
	CapacityDegraded EventKind = "CapacityDegraded"
	CapacityCritical EventKind = "CapacityCritical"
)

// Event is one capacity/readiness transition.
type Event struct {
	Kind EventKind
	Node string
	Loss float64
	At   time.Time
}

// Snapshot is the immutable, race-free view of cluster node health handed
// to every reader other than NodeMonitor itself.
type Snapshot struct {
	Nodes          map[string]Node
	CapacityLoss   float64
	ReadyNodeCount int
	TotalNodeCount int
}
