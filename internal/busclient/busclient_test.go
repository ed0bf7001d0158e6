// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package busclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseio/pulse/internal/metricswindow"
)

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

func TestDecode_WellFormedMessage(t *testing.T) {
	now := time.Now()
	body := []byte(`{"cpu": 55.5, "latency": 120.0, "error_rate": 0.3}`)

	sample, err := decode(body, now)
	require.NoError(t, err)
	assert.Equal(t, 55.5, sample.CPUPct)
	assert.Equal(t, 120.0, sample.LatencyP95Ms)
	assert.Equal(t, 0.3, sample.ErrorRatePct)
	assert.Equal(t, metricswindow.Normal, sample.Severity)
	assert.Equal(t, now, sample.T)
}

func TestDecode_MissingTimestampDefaultsToReceiveTime(t *testing.T) {
	now := time.Now()
	body := []byte(`{"cpu": 10, "latency": 10, "error_rate": 0}`)

	sample, err := decode(body, now)
	require.NoError(t, err)
	assert.True(t, sample.T.Equal(now))
}

func TestDecode_ExplicitTimestampHonored(t *testing.T) {
	ts := 1700000000.5
	body := []byte(`{"cpu": 1, "latency": 1, "error_rate": 0, "timestamp": 1700000000.5}`)

	sample, err := decode(body, time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, int64(ts*float64(time.Second))), sample.T)
}

func TestDecode_SeverityPassedThrough(t *testing.T) {
	body := []byte(`{"cpu": 1, "latency": 1, "error_rate": 0, "severity": "CRITICAL"}`)

	sample, err := decode(body, time.Now())
	require.NoError(t, err)
	assert.Equal(t, metricswindow.Critical, sample.Severity)
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	body := []byte(`{"cpu": 1, "latency": 1, "error_rate": 0, "region": "us-east-1"}`)

	_, err := decode(body, time.Now())
	require.NoError(t, err)
}

func TestDecode_MalformedJSONErrors(t *testing.T) {
	_, err := decode([]byte(`not json`), time.Now())
	assert.Error(t, err)
}

func TestDecode_UnknownSeverityErrors(t *testing.T) {
	body := []byte(`{"cpu": 1, "latency": 1, "error_rate": 0, "severity": "BOGUS"}`)
	_, err := decode(body, time.Now())
	assert.Error(t, err)
}

func TestMemBus_PublishDecodesAndDelivers(t *testing.T) {
	bad := &countingCounter{}
	bus := NewMemBus(4, bad)
	out := make(chan metricswindow.Sample, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx, out)

	bus.Publish([]byte(`{"cpu": 42, "latency": 10, "error_rate": 0}`))

	select {
	case s := <-out:
		assert.Equal(t, 42.0, s.CPUPct)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
	assert.Equal(t, 0, bad.n)
}

func TestMemBus_MalformedMessageCountedNotDelivered(t *testing.T) {
	bad := &countingCounter{}
	bus := NewMemBus(4, bad)
	out := make(chan metricswindow.Sample, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx, out)

	bus.Publish([]byte(`not json`))
	bus.Publish([]byte(`{"cpu": 1, "latency": 1, "error_rate": 0}`))

	select {
	case s := <-out:
		assert.Equal(t, 1.0, s.CPUPct)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the well-formed sample")
	}
	assert.Equal(t, 1, bad.n)
}
