// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package metricswindow implements C1: a bounded, time-ordered buffer of
// metric samples plus the statistics derived from it.
package metricswindow

import (
	"errors"
	"time"
)

// Severity is the coarse health label carried on a sample.
type Severity string

const (
	Normal   Severity = "NORMAL"
	Warning  Severity = "WARNING"
	Critical Severity = "CRITICAL"
)

// Sample is an immutable observation at time T. Once inserted into a
// Window it is never mutated; it is only ever evicted.
type Sample struct {
	T            time.Time
	CPUPct       float64
	LatencyP95Ms float64
	LatencyP99Ms float64
	ErrorRatePct float64
	Severity     Severity
	Source       string
}

// ErrStaleSample is returned by Insert when a sample arrives more than the
// configured skew behind the most recent sample from the same source.
var ErrStaleSample = errors.New("metricswindow: stale sample")
