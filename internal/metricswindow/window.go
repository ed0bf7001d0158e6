// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package metricswindow

import (
	"sync"
	"time"
)

// Window is a bounded, time-ordered buffer of Samples. The Orchestrator is
// its single writer (per spec.md §5); Snapshot gives every other component
// a consistent, race-free copy of the derived Stats.
type Window struct {
	mu sync.Mutex

	windowSeconds time.Duration
	maxSamples    int
	staleSkew     time.Duration

	samples []Sample
	// lastBySource tracks the most recent timestamp accepted per source,
	// used to enforce monotonicity within a single metric source.
	lastBySource map[string]time.Time
}

// New builds an empty Window governed by the given retention window,
// capacity, and out-of-order tolerance.
func New(windowSeconds time.Duration, maxSamples int, staleSkew time.Duration) *Window {
	return &Window{
		windowSeconds: windowSeconds,
		maxSamples:    maxSamples,
		staleSkew:     staleSkew,
		lastBySource:  make(map[string]time.Time),
	}
}

// Insert appends a sample, evicting by age and capacity. It is O(1)
// amortized: eviction only ever trims from the head of a single slice.
// Samples that arrive more than staleSkew behind the latest sample already
// accepted from the same source are rejected with ErrStaleSample per
// spec.md §4.1.
func (w *Window) Insert(s Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.lastBySource[s.Source]; ok {
		if s.T.Before(last.Add(-w.staleSkew)) {
			return ErrStaleSample
		}
	}
	w.lastBySource[s.Source] = laterOf(w.lastBySource[s.Source], s.T)

	w.samples = append(w.samples, s)
	w.evictLocked(s.T)
	return nil
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Trim evicts everything older than windowSeconds relative to now, without
// requiring a new insert. After Trim(now), no sample older than
// windowSeconds remains (spec.md §8 "Window freshness").
func (w *Window) Trim(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked(now)
}

func (w *Window) evictLocked(now time.Time) {
	cutoff := now.Add(-w.windowSeconds)
	start := 0
	for start < len(w.samples) && w.samples[start].T.Before(cutoff) {
		start++
	}
	if start > 0 {
		w.samples = w.samples[start:]
	}
	if over := len(w.samples) - w.maxSamples; over > 0 {
		w.samples = w.samples[over:]
	}
}

// Len reports the current sample count, mostly for tests.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Snapshot copies out the current samples under lock and hands them to the
// stats pipeline outside the lock, matching spec.md §5's "no decision step
// may hold a lock across an external call" discipline (Snapshot itself
// never touches anything external, but callers build on it the same way).
// Snapshot copies out the current samples under lock and computes Stats
// outside the lock. staleAfter is the age beyond which the newest sample
// marks the whole snapshot Stale (SPEC_FULL.md §4.1: "older than
// 2*tick_interval"); callers pass 2*tick_interval.
func (w *Window) Snapshot(now time.Time, staleAfter time.Duration) Stats {
	w.mu.Lock()
	cp := make([]Sample, len(w.samples))
	copy(cp, w.samples)
	w.mu.Unlock()

	return computeStats(cp, now, staleAfter)
}
