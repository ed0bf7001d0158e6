// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package replica implements C5: the replica scaling controller, its
// ordered decision rules, cooldowns, and apply-with-retry path.
package replica

import (
	"time"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/metricswindow"
)

// Severity mirrors metricswindow.Severity so this package doesn't need to
// import it just for the constant names used in rule text.
type Severity = metricswindow.Severity

// Intent is the ReplicaIntent record from spec.md §3.
type Intent struct {
	TargetReplicas int
	Reason         string
	GeneratedAt    time.Time
	Severity       Severity
}

// Context bundles everything a rule needs to evaluate, per spec.md §4.5
// and the rule-object design note in spec.md §9.
type Context struct {
	Now        time.Time
	Current    int
	Stats      metricswindow.Stats
	Score      float64
	Spike      bool
	Severity   Severity
	Backlog    backlog.State
	Pressuring bool
}

// Outcome is the result of Apply: whether the cluster mutation succeeded,
// for the Decision log.
type Outcome struct {
	Applied bool
	Target  int
	Err     error
}
