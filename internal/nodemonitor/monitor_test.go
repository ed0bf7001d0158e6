// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package nodemonitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/pulseio/pulse/internal/config"
)

type fakeSource struct {
	mu    sync.Mutex
	nodes []corev1.Node
}

func (f *fakeSource) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]corev1.Node, len(f.nodes))
	copy(out, f.nodes)
	return out, nil
}

func (f *fakeSource) set(nodes []corev1.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = nodes
}

func readyNode(name string, ready bool) corev1.Node {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: status}},
		},
	}
}

func TestCapacityLoss_EightNodesThreeNotReady(t *testing.T) {
	cfg := config.Default()
	cfg.NotReadyGrace = 0 // exercise the hysteresis boundary deterministically
	f := &fakeSource{}
	events := make(chan Event, 16)
	m := New(f, cfg, nil, events)

	nodes := make([]corev1.Node, 8)
	for i := 0; i < 8; i++ {
		nodes[i] = readyNode(nodeName(i), i >= 3)
	}
	f.set(nodes)

	m.poll(context.Background())
	// second poll to clear the "just transitioned" window with grace=0
	m.poll(context.Background())

	snap := m.Snapshot()
	assert.InDelta(t, 0.375, snap.CapacityLoss, 0.001)
	assert.GreaterOrEqual(t, snap.CapacityLoss, cfg.CriticalCapacityLoss)
}

func TestCapacityLoss_NeverNegativeOrAboveOne(t *testing.T) {
	cfg := config.Default()
	f := &fakeSource{}
	events := make(chan Event, 16)
	m := New(f, cfg, nil, events)
	f.set(nil)

	m.poll(context.Background())
	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.CapacityLoss, 0.0)
	assert.LessOrEqual(t, snap.CapacityLoss, 1.0)
}

func TestQuarantine_RequiresGracePeriod(t *testing.T) {
	cfg := config.Default()
	cfg.NotReadyGrace = time.Minute
	f := &fakeSource{}
	events := make(chan Event, 16)
	m := New(f, cfg, nil, events)

	f.set([]corev1.Node{readyNode("n1", false)})
	m.poll(context.Background())

	snap := m.Snapshot()
	require.Contains(t, snap.Nodes, "n1")
	assert.False(t, snap.Nodes["n1"].Quarantined, "must not quarantine before grace period elapses")
}

func nodeName(i int) string { return "node-" + string(rune('a'+i)) }
