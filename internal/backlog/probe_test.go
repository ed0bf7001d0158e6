// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package backlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseio/pulse/internal/config"
)

type fakeClient struct {
	mu     sync.Mutex
	series map[string][]Point
	err    error
}

func (f *fakeClient) Fetch(ctx context.Context, metric string, lookback time.Duration) ([]Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.series[metric], nil
}

func (f *fakeClient) set(metric string, pts []Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[metric] = pts
}

func newFakeClient() *fakeClient {
	return &fakeClient{series: map[string][]Point{}}
}

func TestProbe_GrowthRateFromTwoPolls(t *testing.T) {
	cfg := config.Default()
	cfg.BacklogInterval = time.Millisecond // irrelevant, we call poll directly
	f := newFakeClient()
	now := time.Now()

	f.set(sizeMetric, []Point{{T: now, Value: 100}})
	f.set(ageMetric, []Point{{T: now, Value: 5}})
	p := New(f, cfg, nil)
	p.poll(context.Background())

	f.set(sizeMetric, []Point{{T: now.Add(10 * time.Second), Value: 150}})
	f.set(ageMetric, []Point{{T: now.Add(10 * time.Second), Value: 8}})
	p.poll(context.Background())

	st, _ := p.Snapshot()
	require.NotNil(t, st.GrowthRatePerS)
	assert.InDelta(t, 5.0, *st.GrowthRatePerS, 0.001)
}

func TestProbe_UnknownAfterMaxStaleIntervals(t *testing.T) {
	cfg := config.Default()
	cfg.MaxStaleIntervals = 2
	f := newFakeClient()
	f.err = errors.New("boom")
	p := New(f, cfg, nil)

	for i := 0; i < 3; i++ {
		p.poll(context.Background())
	}

	st, pressuring := p.Snapshot()
	assert.True(t, st.Unknown)
	assert.False(t, pressuring, "unknown state must never be reported as pressuring")
}

func TestProbe_PressuringOnSize(t *testing.T) {
	cfg := config.Default()
	cfg.BacklogSizeThreshold = 1000
	f := newFakeClient()
	now := time.Now()
	f.set(sizeMetric, []Point{{T: now, Value: 5000}})
	f.set(ageMetric, []Point{{T: now, Value: 1}})
	p := New(f, cfg, nil)
	p.poll(context.Background())

	_, pressuring := p.Snapshot()
	assert.True(t, pressuring)
}

func TestProbe_PressuringOnAge(t *testing.T) {
	cfg := config.Default()
	cfg.BacklogAgeThreshold = 60 * time.Second
	f := newFakeClient()
	now := time.Now()
	f.set(sizeMetric, []Point{{T: now, Value: 10}})
	f.set(ageMetric, []Point{{T: now, Value: 120}})
	p := New(f, cfg, nil)
	p.poll(context.Background())

	_, pressuring := p.Snapshot()
	assert.True(t, pressuring)
}
