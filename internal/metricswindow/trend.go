// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package metricswindow

// trend computes the slope of CPU usage over the last trendK samples via a
// simple least-squares linear regression against sample index. When fewer
// than 10 samples are available, spec.md §4.1 specifies a coarser
// mean-of-recent-quarter minus mean-of-older-quarter estimate instead.
func trend(samples []Sample) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	tail := samples
	if n > trendK {
		tail = samples[n-trendK:]
	}
	if len(tail) < 10 {
		return quarterDelta(tail)
	}
	return regressionSlope(tail)
}

func regressionSlope(tail []Sample) float64 {
	n := float64(len(tail))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range tail {
		x := float64(i)
		y := s.CPUPct
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// quarterDelta splits tail into an older half and a more-recent half (each
// roughly a quarter of the configured trend window in the spec's wording,
// here simply the first and second half of whatever's available) and
// returns the difference of their means.
func quarterDelta(tail []Sample) float64 {
	n := len(tail)
	if n < 2 {
		return 0
	}
	mid := n / 2
	older := tail[:mid]
	recent := tail[mid:]

	var oSum, rSum float64
	for _, s := range older {
		oSum += s.CPUPct
	}
	for _, s := range recent {
		rSum += s.CPUPct
	}
	return rSum/float64(len(recent)) - oSum/float64(len(older))
}
