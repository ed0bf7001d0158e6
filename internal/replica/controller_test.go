// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package replica

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/metricswindow"
)

type fakeScaler struct {
	mu       sync.Mutex
	current  int
	setCalls int
	failN    int // fail the first failN SetReplicas calls
}

func (f *fakeScaler) CurrentReplicas(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeScaler) SetReplicas(ctx context.Context, target int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setCalls <= f.failN {
		return errConflict{}
	}
	f.current = target
	return nil
}

type errConflict struct{}

func (errConflict) Error() string { return "conflict" }

func TestDecide_CriticalBypass(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	now := time.Now()
	intent := c.Decide(Context{Now: now, Current: 5, Severity: metricswindow.Critical})
	require.NotNil(t, intent)
	assert.Equal(t, 10, intent.TargetReplicas)
}

func TestDecide_CriticalBypass_SecondWithinCooldownNoChange(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	now := time.Now()
	first := c.Decide(Context{Now: now, Current: 5, Severity: metricswindow.Critical})
	require.NotNil(t, first)
	outcome := c.Apply(context.Background(), *first)
	require.True(t, outcome.Applied)

	second := c.Decide(Context{Now: now.Add(10 * time.Second), Current: 10, Severity: metricswindow.Critical})
	assert.Nil(t, second)
}

func TestDecide_BacklogOverride(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 4}, cfg, ledger, nil)

	now := time.Now()
	rate := 5.0
	intent := c.Decide(Context{
		Now: now, Current: 4,
		Backlog:    backlog.State{Size: 50000, OldestAgeS: 120, GrowthRatePerS: &rate},
		Pressuring: true,
	})
	require.NotNil(t, intent)
	assert.Equal(t, 4+cfg.BacklogStep, intent.TargetReplicas)
}

func TestDecide_SpikeResponse(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 4}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 4, Spike: true})
	require.NotNil(t, intent)
	assert.Equal(t, 6, intent.TargetReplicas)
}

func TestDecide_CompositeScaleUp(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 4}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 4, Score: 1.24})
	require.NotNil(t, intent)
	assert.Equal(t, 6, intent.TargetReplicas)
}

func TestDecide_CompositeScaleDown(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 5, Score: 0.3})
	require.NotNil(t, intent)
	assert.Equal(t, 4, intent.TargetReplicas)
}

func TestDecide_ScaleDownBlockedByPressuringBacklog(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 5, Score: 0.3, Pressuring: true})
	assert.Nil(t, intent)
}

func TestDecide_ScaleDownBlockedAtMinReplicas(t *testing.T) {
	cfg := config.Default()
	cfg.MinReplicas = 5
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 5, Score: 0.1})
	assert.Nil(t, intent)
}

func TestDecide_Hold(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 5}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 5, Score: 0.8})
	assert.Nil(t, intent)
}

func TestBounds_AlwaysWithinMinMax(t *testing.T) {
	cfg := config.Default()
	cfg.MaxReplicas = 20
	ledger := cooldown.New()
	c := New(&fakeScaler{current: 19}, cfg, ledger, nil)

	intent := c.Decide(Context{Now: time.Now(), Current: 19, Severity: metricswindow.Critical})
	require.NotNil(t, intent)
	assert.LessOrEqual(t, intent.TargetReplicas, cfg.MaxReplicas)
	assert.GreaterOrEqual(t, intent.TargetReplicas, cfg.MinReplicas)
}

func TestApply_RetriesConflictThenSucceeds(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	scaler := &fakeScaler{current: 4, failN: 2}
	c := New(scaler, cfg, ledger, nil)

	outcome := c.Apply(context.Background(), Intent{TargetReplicas: 6, GeneratedAt: time.Now(), Reason: "composite score scale-up"})
	assert.True(t, outcome.Applied)
	assert.Equal(t, 6, outcome.Target)
	assert.Equal(t, 3, scaler.setCalls)
}

func TestApply_IdempotentSameIntentTwice(t *testing.T) {
	cfg := config.Default()
	ledger := cooldown.New()
	scaler := &fakeScaler{current: 4}
	c := New(scaler, cfg, ledger, nil)

	intent := Intent{TargetReplicas: 7, GeneratedAt: time.Now(), Reason: "composite score scale-up"}
	c.Apply(context.Background(), intent)
	c.Apply(context.Background(), intent)

	scaler.mu.Lock()
	defer scaler.mu.Unlock()
	assert.Equal(t, 7, scaler.current)
}
