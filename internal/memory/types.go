// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package memory implements C7: OOM detection and limit remediation.
package memory

import "time"

// Event is the MemoryEvent record from spec.md §3.
type Event struct {
	Pod           string
	Container     string
	Deployment    string
	ObservedTS    time.Time
	PreviousLimit int64
	NewLimit      int64
	Applied       bool
}

// PodOOM is one observed OOMKilled termination, the input Detection scans
// for per spec.md §4.7.
type PodOOM struct {
	Pod           string
	Namespace     string
	Container     string
	Deployment    string
	TerminatedAt  time.Time
	PreviousLimit int64
	PreviousReq   int64
}

// ReadyPodObservation is used to confirm a patch took effect: at least one
// ready pod observed with the new limit before Applied flips true.
type ReadyPodObservation struct {
	Deployment string
	Ready      bool
	Limit      int64
}
