// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package orchestrator

import (
	"time"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/nodemonitor"
)

// StatusSnapshot is the read-only aggregate C9's StatusServer serves,
// per SPEC_FULL.md §3. It is produced fresh on every request from the
// Orchestrator's own state; the status endpoint never mutates it.
type StatusSnapshot struct {
	GeneratedAt       time.Time
	RecentDecisions   []decisionlog.Decision
	CooldownRemaining map[string]float64
	Nodes             nodemonitor.Snapshot
	Backlog           backlog.State
	BacklogPressuring bool
}
