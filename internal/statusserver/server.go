// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package statusserver implements C9: the read-only HTTP projection of
// Orchestrator state described in SPEC_FULL.md §4.9 -- /healthz, /status,
// and /metrics -- following the teacher's gorilla/mux-based health-probe
// server idiom in comp/core/healthprobe/healthprobeimpl.
package statusserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/orchestrator"
)

// Source is the narrow read seam StatusServer depends on; the
// Orchestrator satisfies it directly.
type Source interface {
	Snapshot(now time.Time) orchestrator.StatusSnapshot
}

const requestTimeout = 5 * time.Second

// Server is C9.
type Server struct {
	addr    string
	source  Source
	metrics *Metrics
	log     *zap.SugaredLogger

	srv *http.Server
}

// New builds a Server bound to addr (e.g. ":8080"). metrics may be nil, in
// which case a fresh Metrics is created and /metrics serves its collectors
// with no observations recorded.
func New(addr string, source Source, metrics *Metrics, log *zap.SugaredLogger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{addr: addr, source: source, metrics: metrics, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.srv = &http.Server{
		Handler:           r,
		ReadTimeout:       requestTimeout,
		ReadHeaderTimeout: requestTimeout,
		WriteTimeout:      requestTimeout,
	}
	return s
}

// Metrics returns the registry Server serves /metrics from, so callers can
// wire it as the Orchestrator's decision-observer and busclient's
// malformed-message counter.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot(time.Now())

	s.metrics.ObserveGauges(snap.Nodes.CapacityLoss, snap.CooldownRemaining, currentReplicaTarget(snap))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		if s.log != nil {
			s.log.Warnw("statusserver: encoding status failed", "error", err)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// currentReplicaTarget reads the most recent replica-affecting decision's
// To field out of the tail, falling back to 0 when none is present yet
// (e.g. immediately after startup).
func currentReplicaTarget(snap orchestrator.StatusSnapshot) int {
	for i := len(snap.RecentDecisions) - 1; i >= 0; i-- {
		d := snap.RecentDecisions[i]
		if d.To == "" || d.Kind == decisionlog.NodeScale || d.Kind == decisionlog.NodeDrain {
			continue
		}
		if n, err := strconv.Atoi(d.To); err == nil {
			return n
		}
	}
	return 0
}
