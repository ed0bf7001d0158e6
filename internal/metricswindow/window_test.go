// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package metricswindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_RejectsStaleSample(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()

	require.NoError(t, w.Insert(Sample{T: base, Source: "svc-a"}))
	err := w.Insert(Sample{T: base.Add(-5 * time.Second), Source: "svc-a"})
	assert.ErrorIs(t, err, ErrStaleSample)
}

func TestInsert_ToleratesSmallSkew(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()

	require.NoError(t, w.Insert(Sample{T: base, Source: "svc-a"}))
	require.NoError(t, w.Insert(Sample{T: base.Add(-1 * time.Second), Source: "svc-a"}))
}

func TestInsert_IndependentPerSource(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()

	require.NoError(t, w.Insert(Sample{T: base, Source: "svc-a"}))
	require.NoError(t, w.Insert(Sample{T: base.Add(-100 * time.Second), Source: "svc-b"}))
}

func TestTrim_EvictsByAge(t *testing.T) {
	w := New(60*time.Second, 600, 2*time.Second)
	base := time.Now()

	require.NoError(t, w.Insert(Sample{T: base.Add(-90 * time.Second), Source: "a"}))
	require.NoError(t, w.Insert(Sample{T: base, Source: "a"}))

	w.Trim(base)
	assert.Equal(t, 1, w.Len())
}

func TestTrim_EvictsByCapacity(t *testing.T) {
	w := New(300*time.Second, 3, 2*time.Second)
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Insert(Sample{T: base.Add(time.Duration(i) * time.Second), Source: "a"}))
	}
	assert.Equal(t, 3, w.Len())
}

func TestSnapshot_EmptyWindow(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	st := w.Snapshot(time.Now(), 20*time.Second)
	assert.Equal(t, 0, st.Count)
	assert.True(t, st.Stale)
}

func TestSnapshot_SingleSampleAllPercentilesEqual(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()
	require.NoError(t, w.Insert(Sample{T: base, CPUPct: 42, Source: "a"}))

	st := w.Snapshot(base, 20*time.Second)
	assert.Equal(t, 42.0, st.CPU.P90)
	assert.Equal(t, 42.0, st.CPU.P95)
	assert.Equal(t, 42.0, st.CPU.P99)
}

func TestSnapshot_P99EqualsMaxUnderTenSamples(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Insert(Sample{T: base.Add(time.Duration(i) * time.Millisecond), CPUPct: float64(i * 10), Source: "a"}))
	}

	st := w.Snapshot(base.Add(5*time.Millisecond), 20*time.Second)
	assert.Equal(t, 40.0, st.CPU.P99)
}

func TestSnapshot_StaleWhenNoRecentSample(t *testing.T) {
	w := New(300*time.Second, 600, 2*time.Second)
	base := time.Now()
	require.NoError(t, w.Insert(Sample{T: base, CPUPct: 10, Source: "a"}))

	st := w.Snapshot(base.Add(time.Minute), 20*time.Second)
	assert.True(t, st.Stale)
}

func TestSnapshot_RecentAndBaselineSplit(t *testing.T) {
	w := New(600*time.Second, 600, 2*time.Second)
	base := time.Now()

	// baseline window samples (older than 30s, within last 300s)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Insert(Sample{T: base.Add(-time.Duration(64-i) * time.Second), CPUPct: 30, Source: "a"}))
	}
	// recent window samples (last 30s)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Insert(Sample{T: base.Add(-time.Duration(4-i) * time.Second), CPUPct: 80, Source: "a"}))
	}

	st := w.Snapshot(base, 20*time.Second)
	assert.InDelta(t, 80, st.Recent.CPUPct, 0.001)
	assert.InDelta(t, 30, st.Baseline.CPUPct, 0.001)
}
