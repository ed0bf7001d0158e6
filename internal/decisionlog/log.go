// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package decisionlog implements the append-only Decision record from
// spec.md §3, retained up to a configured horizon. Persistence strategy is
// left pluggable per the Open Question in spec.md §9; Log is the default
// in-memory ring buffer.
package decisionlog

import (
	"sync"
	"time"
)

// Kind is the category of a recorded Decision.
type Kind string

const (
	Hold           Kind = "Hold"
	ReplicaScale   Kind = "ReplicaScale"
	CriticalBypass Kind = "CriticalBypass"
	SpikeResponse  Kind = "SpikeResponse"
	BacklogScale   Kind = "BacklogScale"
	NodeScale      Kind = "NodeScale"
	NodeDrain      Kind = "NodeDrain"
	MemoryPatch    Kind = "MemoryPatch"
)

// Decision is one historical record, per spec.md §3.
type Decision struct {
	TS       time.Time
	Kind     Kind
	From     string
	To       string
	Reason   string
	Severity string
	Success  bool
}

// Sink is the pluggable persistence seam mentioned in spec.md §9's Open
// Questions; Log satisfies it with an in-memory ring buffer, and other
// backends (a database, an event stream) can be added without touching
// the Orchestrator.
type Sink interface {
	Append(d Decision)
	Tail(n int) []Decision
}

// Log is an in-memory, horizon-bounded Sink. Only the Orchestrator's
// worker ever calls it, per spec.md §5's single-writer discipline.
type Log struct {
	mu        sync.Mutex
	retention int
	entries   []Decision
}

// New builds a Log that keeps at most retention entries.
func New(retention int) *Log {
	if retention <= 0 {
		retention = 1
	}
	return &Log{retention: retention}
}

// Append records d, trimming to the retention horizon.
func (l *Log) Append(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, d)
	if over := len(l.entries) - l.retention; over > 0 {
		l.entries = append([]Decision{}, l.entries[over:]...)
	}
}

// Tail returns a copy of the last n entries (or fewer if the log is
// shorter), oldest first.
func (l *Log) Tail(n int) []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) || n <= 0 {
		n = len(l.entries)
	}
	start := len(l.entries) - n
	out := make([]Decision, n)
	copy(out, l.entries[start:])
	return out
}

// Len reports the current number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
