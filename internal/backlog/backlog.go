// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package backlog implements C2: a poller that reads queue depth and
// oldest-message age from the monitoring API and derives growth rate and
// pressure state from them.
package backlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/config"
)

// MonitoringClient is the narrow collaborator spec.md §6 requires: any
// transport offering two numeric series works. BacklogProbe depends only
// on this interface, not on the concrete Prometheus client.
type MonitoringClient interface {
	// Fetch returns (timestamp, value) pairs for metric over lookback,
	// newest last.
	Fetch(ctx context.Context, metric string, lookback time.Duration) ([]Point, error)
}

// Point is one (timestamp, value) observation from the monitoring API.
type Point struct {
	T     time.Time
	Value float64
}

// State is the BacklogState record from spec.md §3. GrowthRate is nil
// (unknown) rather than zero whenever it cannot be derived, per spec.md
// §8 "No zero from unknown".
type State struct {
	Size           float64
	OldestAgeS     float64
	GrowthRatePerS *float64
	Fresh          bool
	Unknown        bool
}

// Pressuring reports whether this state represents backlog pressure per
// spec.md §4.2: size over threshold, oldest age over threshold, or
// positive growth sustained for the caller-tracked consecutive-interval
// count (callers pass that count in via consecutiveGrowth).
func (s State) Pressuring(sizeThreshold, ageThresholdS float64, consecutiveGrowth int) bool {
	if s.Unknown {
		return false
	}
	if s.Size > sizeThreshold {
		return true
	}
	if s.OldestAgeS > ageThresholdS {
		return true
	}
	if s.GrowthRatePerS != nil && *s.GrowthRatePerS > 0 && consecutiveGrowth >= 2 {
		return true
	}
	return false
}

const (
	sizeMetric = "queue_depth"
	ageMetric  = "queue_oldest_age_seconds"
)

// Probe polls MonitoringClient on a fixed cadence and maintains the
// derived BacklogState, surfacing BacklogUnknown after too many
// consecutive failures rather than silently reporting zero.
type Probe struct {
	client MonitoringClient
	cfg    config.Config
	log    *zap.SugaredLogger

	mu                sync.Mutex
	last              State
	prevSize          *float64
	prevAt            time.Time
	staleCount        int
	consecutiveGrowth int
}
