// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package replica

import (
	"math"

	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/metricswindow"
)

// Rule is one decision step from spec.md §4.5, evaluated in order; the
// controller picks the first rule whose Evaluate returns a non-nil Intent.
// This is the ordered-rule-objects shape recommended in spec.md §9.
type Rule interface {
	Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent
}

// Rules returns the five matching decision rules from spec.md §4.5, in
// their required evaluation order; rule 6 ("no change") is Decide
// returning nil when none of them matches.
func Rules() []Rule {
	return []Rule{
		criticalBypassRule{},
		backlogOverrideRule{},
		spikeResponseRule{},
		scaleUpRule{},
		scaleDownRule{},
	}
}

func clampReplicas(target, min, max int) int {
	if target < min {
		return min
	}
	if target > max {
		return max
	}
	return target
}

// 1. Critical bypass.
type criticalBypassRule struct{}

func (criticalBypassRule) Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent {
	if ctx.Severity != metricswindow.Critical && ctx.Score < cfg.CriticalScore {
		return nil
	}
	if !ledger.Allow(cooldown.Critical, ctx.Now) {
		return nil
	}
	target := clampReplicas(int(math.Ceil(float64(ctx.Current)*cfg.CriticalFactor)), cfg.MinReplicas, cfg.MaxReplicas)
	return &Intent{TargetReplicas: target, Reason: "critical bypass", GeneratedAt: ctx.Now, Severity: metricswindow.Critical}
}

// 2. Backlog override.
type backlogOverrideRule struct{}

func (backlogOverrideRule) Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent {
	if !ctx.Pressuring {
		return nil
	}
	ageOverride := ctx.Backlog.OldestAgeS > cfg.BacklogAgeThreshold.Seconds()
	growthOverride := ctx.Backlog.GrowthRatePerS != nil && *ctx.Backlog.GrowthRatePerS > 0
	if !ageOverride && !growthOverride {
		return nil
	}
	step := cfg.BacklogStep
	if step < 1 {
		step = int(math.Ceil(float64(ctx.Current) * 0.25))
		if step < 1 {
			step = 1
		}
	}
	target := clampReplicas(ctx.Current+step, cfg.MinReplicas, cfg.MaxReplicas)
	return &Intent{TargetReplicas: target, Reason: "backlog pressure", GeneratedAt: ctx.Now, Severity: ctx.Severity}
}

// 3. Spike response.
type spikeResponseRule struct{}

func (spikeResponseRule) Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent {
	if !ctx.Spike {
		return nil
	}
	if !ledger.Allow(cooldown.Critical, ctx.Now) {
		return nil
	}
	target := clampReplicas(int(math.Ceil(float64(ctx.Current)*cfg.SpikeFactor)), cfg.MinReplicas, cfg.MaxReplicas)
	return &Intent{TargetReplicas: target, Reason: "spike detected", GeneratedAt: ctx.Now, Severity: ctx.Severity}
}

// 4. Composite scale-up.
type scaleUpRule struct{}

func (scaleUpRule) Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent {
	if ctx.Score < cfg.ScaleUpScore {
		return nil
	}
	if !ledger.Allow(cooldown.ReplicaUp, ctx.Now) {
		return nil
	}
	target := clampReplicas(ctx.Current+cfg.UpStep, cfg.MinReplicas, cfg.MaxReplicas)
	return &Intent{TargetReplicas: target, Reason: "composite score scale-up", GeneratedAt: ctx.Now, Severity: ctx.Severity}
}

// 5. Composite scale-down.
type scaleDownRule struct{}

func (scaleDownRule) Evaluate(ctx Context, cfg config.Config, ledger *cooldown.Ledger) *Intent {
	if ctx.Score > cfg.ScaleDownScore {
		return nil
	}
	if ctx.Current <= cfg.MinReplicas {
		return nil
	}
	// Critical dominates scale-down: a CRITICAL signal held back by the
	// critical cooldown must not fall through into a shrink.
	if ctx.Severity == metricswindow.Critical {
		return nil
	}
	if ctx.Pressuring {
		return nil
	}
	if !ledger.Allow(cooldown.ReplicaDown, ctx.Now) {
		return nil
	}
	target := clampReplicas(ctx.Current-cfg.DownStep, cfg.MinReplicas, cfg.MaxReplicas)
	return &Intent{TargetReplicas: target, Reason: "composite score scale-down", GeneratedAt: ctx.Now, Severity: ctx.Severity}
}
