// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package nodemonitor

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"

	"github.com/pulseio/pulse/internal/config"
)

// NodeSource is the narrow cluster-API read surface NodeMonitor depends
// on; ClusterClient implements it with a direct Nodes().List call on each
// poll, tests use a fake slice.
type NodeSource interface {
	ListNodes(ctx context.Context) ([]corev1.Node, error)
}

// Monitor is C3: it polls NodeSource on node_poll_interval, classifies
// each node, applies not-ready hysteresis, and emits Events.
type Monitor struct {
	source NodeSource
	cfg    config.Config
	log    *zap.SugaredLogger
	events chan Event

	mu    sync.RWMutex
	nodes map[string]Node
}

// New builds a Monitor. events should be buffered; NodeMonitor never
// blocks waiting for a consumer per spec.md §5.
func New(source NodeSource, cfg config.Config, log *zap.SugaredLogger, events chan Event) *Monitor {
	return &Monitor{source: source, cfg: cfg, log: log, events: events, nodes: map[string]Node{}}
}

// Run polls on cfg.NodePollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.NodePollInterval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.ExternalCallDeadline)
	defer cancel()

	raw, err := m.source.ListNodes(cctx)
	if err != nil {
		if m.log != nil {
			m.log.Warnw("nodemonitor: list nodes failed", "error", err)
		}
		return
	}

	now := time.Now()
	m.mu.Lock()
	seen := make(map[string]bool, len(raw))
	for _, n := range raw {
		seen[n.Name] = true
		m.classifyLocked(n, now)
	}
	for name := range m.nodes {
		if !seen[name] {
			delete(m.nodes, name)
		}
	}
	loss, _, _ := capacityLossLocked(m.nodes)
	m.mu.Unlock()

	switch {
	case loss >= m.cfg.CriticalCapacityLoss:
		m.emit(CapacityCritical, "", loss, now)
	case loss > 0:
		m.emit(CapacityDegraded, "", loss, now)
	}
}

func (m *Monitor) classifyLocked(n corev1.Node, now time.Time) {
	ready := isReady(n)
	schedulable := !n.Spec.Unschedulable && len(activeTaints(n.Spec.Taints)) == 0

	prev, existed := m.nodes[n.Name]
	next := Node{
		Name:             n.Name,
		Ready:            ready,
		Schedulable:      schedulable,
		Taints:           taintStrings(n.Spec.Taints),
		LastTransitionTS: lastTransition(n),
	}

	if !existed {
		if !ready {
			next.notReadySince = now
		} else {
			next.readySince = now
		}
		m.nodes[n.Name] = next
		return
	}

	next.Quarantined = prev.Quarantined
	next.notReadySince = prev.notReadySince
	next.readySince = prev.readySince

	switch {
	case !ready && prev.Ready:
		// Just went not-ready: start the grace clock.
		next.notReadySince = now
		next.readySince = time.Time{}
	case !ready && !prev.Ready:
		if !next.notReadySince.IsZero() && now.Sub(next.notReadySince) >= m.cfg.NotReadyGrace && !prev.Quarantined {
			next.Quarantined = true
			m.emit(NodeLost, n.Name, 0, now)
		}
	case ready && !prev.Ready:
		next.readySince = now
		next.notReadySince = time.Time{}
	case ready && prev.Ready:
		if prev.Quarantined && !next.readySince.IsZero() && now.Sub(next.readySince) >= m.cfg.NotReadyGrace {
			next.Quarantined = false
			m.emit(NodeRecovered, n.Name, 0, now)
		}
	}

	m.nodes[n.Name] = next
}

// capacityLossLocked computes capacity_loss as the fraction of quarantined
// (post-hysteresis not-ready) nodes, always in [0,1] per spec.md §3.
func capacityLossLocked(nodes map[string]Node) (loss float64, ready, total int) {
	total = len(nodes)
	if total == 0 {
		return 0, 0, 0
	}
	lost := 0
	for _, n := range nodes {
		if n.Quarantined {
			lost++
		} else {
			ready++
		}
	}
	return float64(lost) / float64(total), ready, total
}

func (m *Monitor) emit(kind EventKind, node string, loss float64, now time.Time) {
	select {
	case m.events <- Event{Kind: kind, Node: node, Loss: loss, At: now}:
	default:
		if m.log != nil {
			m.log.Warnw("nodemonitor: event channel full, dropping", "kind", kind)
		}
	}
}

// Snapshot returns a race-free copy of current node health, per spec.md
// §5's reader/writer discipline (NodeMonitor writes, everyone else reads
// snapshots).
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := make(map[string]Node, len(m.nodes))
	for k, v := range m.nodes {
		cp[k] = v
	}
	loss, ready, total := capacityLossLocked(m.nodes)
	return Snapshot{Nodes: cp, CapacityLoss: clamp01(loss), ReadyNodeCount: ready, TotalNodeCount: total}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func isReady(n corev1.Node) bool {
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func activeTaints(taints []corev1.Taint) []corev1.Taint {
	out := make([]corev1.Taint, 0, len(taints))
	for _, t := range taints {
		if t.Effect == corev1.TaintEffectNoSchedule || t.Effect == corev1.TaintEffectNoExecute {
			out = append(out, t)
		}
	}
	return out
}

func taintStrings(taints []corev1.Taint) []string {
	out := make([]string, 0, len(taints))
	for _, t := range taints {
		out = append(out, t.Key+"="+t.Value+":"+string(t.Effect))
	}
	return out
}

func lastTransition(n corev1.Node) time.Time {
	var latest time.Time
	for _, c := range n.Status.Conditions {
		if c.LastTransitionTime.Time.After(latest) {
			latest = c.LastTransitionTime.Time
		}
	}
	return latest
}
