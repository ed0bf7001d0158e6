// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package nodescaler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
)

// Scaler is C6.
type Scaler struct {
	api            NodeAPI
	resizer        NodePoolResizer
	cfg            config.Config
	ledger         *cooldown.Ledger
	log            *zap.SugaredLogger
	lastNodeAction time.Time
}

// New builds a Scaler bound to a NodeAPI, a NodePoolResizer, and the
// shared CooldownLedger.
func New(api NodeAPI, resizer NodePoolResizer, cfg config.Config, ledger *cooldown.Ledger, log *zap.SugaredLogger) *Scaler {
	return &Scaler{api: api, resizer: resizer, cfg: cfg, ledger: ledger, log: log}
}

// ScaleUp grows the node pool by n, optionally bypassing node_up's
// cooldown (CapacityCritical events do, per spec.md §4.6) but never the
// 60s minimum inter-action gap.
func (s *Scaler) ScaleUp(ctx context.Context, n int, now time.Time, bypassCooldown bool) error {
	if !bypassCooldown && !s.ledger.Allow(cooldown.NodeUp, now) {
		return fmt.Errorf("nodescaler: node_up cooldown active")
	}
	if now.Sub(s.lastNodeAction) < s.cfg.MinNodeActionGap {
		return fmt.Errorf("nodescaler: minimum inter-action gap not elapsed")
	}

	if err := s.resizer.Resize(ctx, n, nil); err != nil {
		return fmt.Errorf("nodescaler: resize up by %d: %w", n, err)
	}
	s.lastNodeAction = now
	s.ledger.Mark(cooldown.NodeUp, now, s.cfg.CooldownNodeUp)
	return nil
}

// ScaleDown shrinks the node pool by removing the named nodes, honoring
// node_down's cooldown. Callers (the Orchestrator) are responsible for
// the cross-tick ordering invariant: node scale-down waits at least one
// full tick after any replica change (spec.md §4.8).
func (s *Scaler) ScaleDown(ctx context.Context, nodes []string, now time.Time) error {
	if !s.ledger.Allow(cooldown.NodeDown, now) {
		return fmt.Errorf("nodescaler: node_down cooldown active")
	}
	if now.Sub(s.lastNodeAction) < s.cfg.MinNodeActionGap {
		return fmt.Errorf("nodescaler: minimum inter-action gap not elapsed")
	}

	if err := s.resizer.Resize(ctx, -len(nodes), nodes); err != nil {
		return fmt.Errorf("nodescaler: resize down %v: %w", nodes, err)
	}
	s.lastNodeAction = now
	s.ledger.Mark(cooldown.NodeDown, now, s.cfg.CooldownNodeDown)
	return nil
}

// Cordon marks node unschedulable, the quarantine request NodeMonitor
// issues on NodeLost (spec.md §4.3's quarantine policy).
func (s *Scaler) Cordon(ctx context.Context, node string) error {
	return s.api.Cordon(ctx, node)
}

// Uncordon clears unschedulable, used only on confirmed recovery; NodeScaler
// never uncordons as a side effect of a failed drain (spec.md §8 "Drain
// safety").
func (s *Scaler) Uncordon(ctx context.Context, node string) error {
	return s.api.Uncordon(ctx, node)
}

// Drain runs the strict cordon -> evict -> remove sequence from spec.md
// §4.6. If the cluster has no ready nodes, it takes the emergency path
// instead: skip drain, scale up first, then the caller should re-evaluate
// (ScaleUp with bypassCooldown does this half; Drain itself just checks
// and refuses).
func (s *Scaler) Drain(ctx context.Context, node string, now time.Time) DrainResult {
	ready, err := s.api.ReadyNodeCount(ctx)
	if err == nil && ready == 0 {
		if s.log != nil {
			s.log.Warnw("nodescaler: refusing drain with no ready nodes, emergency scale-up required first", "node", node)
		}
		return DrainResult{Node: node, Completed: false, FailedAt: StepCordon, Err: fmt.Errorf("no ready nodes in cluster")}
	}

	if err := s.api.Cordon(ctx, node); err != nil {
		return DrainResult{Node: node, Completed: false, FailedAt: StepCordon, Err: err}
	}

	pods, err := s.api.ListEvictablePods(ctx, node)
	if err != nil {
		// Node stays cordoned: spec.md §4.6/§8 "never silently uncordoned".
		return DrainResult{Node: node, Completed: false, FailedAt: StepEvict, Err: err}
	}

	var skipped []PodRef
	for _, p := range pods {
		if p.DaemonSet {
			continue
		}
		if evictErr := s.evictWithOneRetry(ctx, p); evictErr != nil {
			skipped = append(skipped, p)
			if s.log != nil {
				s.log.Warnw("nodescaler: pod eviction failed after retry, skipping", "pod", p.Name, "namespace", p.Namespace, "error", evictErr)
			}
		}
	}

	if err := s.resizer.Resize(ctx, -1, []string{node}); err != nil {
		return DrainResult{Node: node, Completed: false, FailedAt: StepRemove, Err: err, Skipped: skipped}
	}

	return DrainResult{Node: node, Completed: true, Skipped: skipped}
}

func (s *Scaler) evictWithOneRetry(ctx context.Context, p PodRef) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.DrainEvictDeadline)
	defer cancel()

	err := s.api.Evict(cctx, p, s.cfg.DrainGracePeriod)
	if err == nil {
		return nil
	}
	// One retry, per spec.md §4.6: "retried once; then logged and skipped
	// (not force-deleted)".
	return s.api.Evict(cctx, p, s.cfg.DrainGracePeriod)
}
