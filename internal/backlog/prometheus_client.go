// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package backlog

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	model "github.com/prometheus/common/model"
)

// PrometheusClient realizes MonitoringClient against a Prometheus-compatible
// HTTP API, the concrete binding for spec.md §6's monitoring API egress
// contract (SPEC_FULL.md §4.2).
type PrometheusClient struct {
	api promv1.API
}

// NewPrometheusClient dials addr (e.g. "http://prometheus:9090").
func NewPrometheusClient(addr string) (*PrometheusClient, error) {
	c, err := api.NewClient(api.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("backlog: creating prometheus client: %w", err)
	}
	return &PrometheusClient{api: promv1.NewAPI(c)}, nil
}

// Fetch runs a range query over lookback and returns the series as Points.
func (c *PrometheusClient) Fetch(ctx context.Context, metric string, lookback time.Duration) ([]Point, error) {
	now := time.Now()
	r := promv1.Range{
		Start: now.Add(-lookback),
		End:   now,
		Step:  15 * time.Second,
	}
	val, warnings, err := c.api.QueryRange(ctx, metric, r)
	if err != nil {
		return nil, fmt.Errorf("backlog: querying %s: %w", metric, err)
	}
	_ = warnings

	matrix, ok := val.(model.Matrix)
	if !ok || len(matrix) == 0 {
		return nil, fmt.Errorf("backlog: no series for %s", metric)
	}

	series := matrix[0]
	out := make([]Point, len(series.Values))
	for i, sp := range series.Values {
		out[i] = Point{T: sp.Timestamp.Time(), Value: float64(sp.Value)}
	}
	return out, nil
}
