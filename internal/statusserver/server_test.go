// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/orchestrator"
)

type fakeSource struct {
	snap orchestrator.StatusSnapshot
}

func (f fakeSource) Snapshot(now time.Time) orchestrator.StatusSnapshot { return f.snap }

func TestHandleHealthz_AlwaysOK(t *testing.T) {
	s := New(":0", fakeSource{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatus_EncodesSnapshot(t *testing.T) {
	snap := orchestrator.StatusSnapshot{
		GeneratedAt:       time.Now(),
		RecentDecisions:   []decisionlog.Decision{{Kind: decisionlog.ReplicaScale, To: "5", Success: true}},
		CooldownRemaining: map[string]float64{"replica_up": 12.5},
	}
	s := New(":0", fakeSource{snap: snap}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got orchestrator.StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 12.5, got.CooldownRemaining["replica_up"])
}

func TestHandleMetrics_ServesPrometheusExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(decisionlog.Decision{Kind: decisionlog.Hold, Success: true})
	s := New(":0", fakeSource{}, m, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pulse_decisions_total")
}

func TestObserveDecision_DoesNotDoubleCount(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(decisionlog.Decision{Kind: decisionlog.Hold, Success: true})
	m.ObserveDecision(decisionlog.Decision{Kind: decisionlog.Hold, Success: true})

	count := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues(string(decisionlog.Hold), "true"))
	assert.Equal(t, float64(2), count)
}
