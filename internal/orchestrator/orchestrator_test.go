// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/memory"
	"github.com/pulseio/pulse/internal/metricswindow"
	"github.com/pulseio/pulse/internal/nodemonitor"
	"github.com/pulseio/pulse/internal/nodescaler"
	"github.com/pulseio/pulse/internal/replica"
	"github.com/pulseio/pulse/internal/scorer"
)

type fakeScaler struct {
	mu       sync.Mutex
	current  int
	setCalls []int
}

func (f *fakeScaler) CurrentReplicas(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeScaler) SetReplicas(ctx context.Context, target int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = target
	f.setCalls = append(f.setCalls, target)
	return nil
}

type fakeBacklogClient struct{}

func (fakeBacklogClient) Fetch(ctx context.Context, metric string, lookback time.Duration) ([]backlog.Point, error) {
	return []backlog.Point{{T: time.Now(), Value: 0}}, nil
}

type fakeNodeSource struct{}

func (fakeNodeSource) ListNodes(ctx context.Context) ([]corev1.Node, error) { return nil, nil }

type fakeMemSource struct{}

func (fakeMemSource) RecentOOMs(ctx context.Context, lookback time.Duration) ([]memory.PodOOM, error) {
	return nil, nil
}

type fakeMemPatcher struct{}

func (fakeMemPatcher) PatchLimits(ctx context.Context, deployment string, newLimit, newRequest int64) error {
	return nil
}
func (fakeMemPatcher) ObserveReadyWithLimit(ctx context.Context, deployment string, limit int64) (bool, error) {
	return true, nil
}

type fakeNodeAPI struct{}

func (fakeNodeAPI) Cordon(ctx context.Context, node string) error   { return nil }
func (fakeNodeAPI) Uncordon(ctx context.Context, node string) error { return nil }
func (fakeNodeAPI) ListEvictablePods(ctx context.Context, node string) ([]nodescaler.PodRef, error) {
	return nil, nil
}
func (fakeNodeAPI) Evict(ctx context.Context, pod nodescaler.PodRef, grace time.Duration) error {
	return nil
}
func (fakeNodeAPI) ReadyNodeCount(ctx context.Context) (int, error) { return 8, nil }

type fakeResizer struct{}

func (fakeResizer) Resize(ctx context.Context, delta int, remove []string) error { return nil }

func newHarness(t *testing.T, cfg config.Config, scaler *fakeScaler) (*Orchestrator, decisionlog.Sink) {
	t.Helper()
	window := metricswindow.New(cfg.WindowSeconds, cfg.MaxSamples, cfg.StaleSkew)
	sc := scorer.New(cfg)
	bp := backlog.New(fakeBacklogClient{}, cfg, nil)
	events := make(chan nodemonitor.Event, 16)
	nm := nodemonitor.New(fakeNodeSource{}, cfg, nil, events)
	ledger := cooldown.New()
	rc := replica.New(scaler, cfg, ledger, nil)
	ns := nodescaler.New(fakeNodeAPI{}, fakeResizer{}, cfg, ledger, nil)
	mo := memory.New(fakeMemSource{}, fakeMemPatcher{}, cfg, nil)
	decisions := decisionlog.New(cfg.DecisionRetention)

	o := New(Deps{
		Window: window, Scorer: sc, Backlog: bp, Nodes: nm, Replica: rc,
		NodeScaler: ns, Memory: mo, Ledger: ledger, Decisions: decisions, NodeEvents: events,
	}, cfg, nil, 64)
	return o, decisions
}

func TestTick_SteadyState_HoldDecision(t *testing.T) {
	cfg := config.Default()
	// current == min_replicas: the low score (~0.428) is below
	// scale_down_score, but scale-down never fires at the floor, so the
	// only possible outcome is Hold, matching spec.md §8 scenario 1.
	scaler := &fakeScaler{current: cfg.MinReplicas}
	o, decisions := newHarness(t, cfg, scaler)

	now := time.Now()
	for i := 0; i < 60; i++ {
		o.inbox <- metricswindow.Sample{
			T: now.Add(-time.Duration(60-i) * time.Second), CPUPct: 40, LatencyP95Ms: 120, ErrorRatePct: 0.2,
			Severity: metricswindow.Normal, Source: "app",
		}
	}

	o.Tick(context.Background(), now)

	tail := decisions.Tail(1)
	require.Len(t, tail, 1)
	assert.Equal(t, decisionlog.Hold, tail[0].Kind)
	assert.Equal(t, cfg.MinReplicas, scaler.current)
}

func TestTick_CriticalSeverity_BypassesToDoubleReplicas(t *testing.T) {
	cfg := config.Default()
	scaler := &fakeScaler{current: 5}
	o, decisions := newHarness(t, cfg, scaler)

	now := time.Now()
	o.inbox <- metricswindow.Sample{T: now, CPUPct: 40, LatencyP95Ms: 100, ErrorRatePct: 0.1, Severity: metricswindow.Critical, Source: "app"}

	o.Tick(context.Background(), now)

	assert.Equal(t, 10, scaler.current)
	tail := decisions.Tail(1)
	require.Len(t, tail, 1)
	assert.Equal(t, decisionlog.CriticalBypass, tail[0].Kind)
	assert.True(t, tail[0].Success)
}

func TestScaleDownNodesIfDue_BlockedWithinOneTickOfReplicaChange(t *testing.T) {
	cfg := config.Default()
	scaler := &fakeScaler{current: 5}
	o, _ := newHarness(t, cfg, scaler)

	now := time.Now()
	o.lastReplicaChangeAt = now

	err := o.ScaleDownNodesIfDue(context.Background(), []string{"node-1"}, now.Add(cfg.TickInterval/2))
	assert.Error(t, err, "node scale-down must wait a full tick after a replica change")
}

func TestScaleDownNodesIfDue_AllowedAfterOneFullTick(t *testing.T) {
	cfg := config.Default()
	scaler := &fakeScaler{current: 5}
	o, _ := newHarness(t, cfg, scaler)

	now := time.Now()
	o.lastReplicaChangeAt = now

	err := o.ScaleDownNodesIfDue(context.Background(), []string{"node-1"}, now.Add(cfg.TickInterval*2))
	assert.NoError(t, err)
}
