// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package scorer implements C4: the composite score and spike detector
// derived from a metricswindow.Stats snapshot.
package scorer

import (
	"math"

	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/metricswindow"
)

// epsBase is the floor used for the spike ratio's denominator so a
// near-zero baseline never produces a divide-by-zero spike.
const epsBase = 0.01

// Result is the deterministic output of one scoring pass: given identical
// samples and Config, Score and Spike are reproducible (spec.md §8).
type Result struct {
	Score      float64
	Spike      bool
	SpikeRatio float64
}

// Scorer computes the composite score formula from spec.md §4.4.
type Scorer struct {
	cfg config.Config
}

// New builds a Scorer bound to an immutable Config.
func New(cfg config.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the composite score and spike verdict for a Stats
// snapshot. It never mutates its input and performs no I/O.
func (s *Scorer) Score(st metricswindow.Stats) Result {
	c := s.cfg
	// cpu_p95 is the window's 95th percentile of raw cpu_pct samples;
	// latency_p95_ms and error_rate_pct are already per-sample tail/rate
	// values, so the window contributes their mean rather than a second
	// percentile pass.
	score := c.WCPU*norm(st.CPU.P95, c.CPUTarget) +
		c.WLat*norm(st.Latency.Mean, c.LatencyTargetMs) +
		c.WErr*norm(st.ErrorRate.Mean, c.ErrTarget)

	ratio := spikeRatio(st)
	spike := ratio >= c.SpikeRatio && st.Recent.Count >= 3

	return Result{Score: score, Spike: spike, SpikeRatio: ratio}
}

func norm(x, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return clamp(x/ref, 0, 3)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func spikeRatio(st metricswindow.Stats) float64 {
	if st.Recent.Count == 0 {
		return 0
	}
	base := st.Baseline.CPUPct
	if base < epsBase {
		base = epsBase
	}
	return st.Recent.CPUPct / base
}
