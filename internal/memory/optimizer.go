// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/config"
)

// PodOOMSource lists recently observed OOM terminations, scanning pod
// status per spec.md §4.7.
type PodOOMSource interface {
	RecentOOMs(ctx context.Context, lookback time.Duration) ([]PodOOM, error)
}

// LimitPatcher patches a deployment's container resources and reports
// whether a ready pod with the new limit has since been observed.
type LimitPatcher interface {
	PatchLimits(ctx context.Context, deployment string, newLimit, newRequest int64) error
	ObserveReadyWithLimit(ctx context.Context, deployment string, limit int64) (bool, error)
}

// Optimizer is C7. It owns MemoryEvent history exclusively, per spec.md §3.
type Optimizer struct {
	source  PodOOMSource
	patcher LimitPatcher
	cfg     config.Config
	log     *zap.SugaredLogger

	mu         sync.Mutex
	history    []Event
	escalation *gocache.Cache
	unsafe     map[string]bool
}

// New builds an Optimizer. Its own escalation counter is a TTL cache
// keyed by deployment name, windowed by oom_lookback — the same bounded
// TTL-counter idiom the teacher uses for short-lived caches.
func New(source PodOOMSource, patcher LimitPatcher, cfg config.Config, log *zap.SugaredLogger) *Optimizer {
	return &Optimizer{
		source:     source,
		patcher:    patcher,
		cfg:        cfg,
		log:        log,
		escalation: gocache.New(cfg.OOMLookback, cfg.OOMLookback/2),
		unsafe:     map[string]bool{},
	}
}

// Scan runs one OOM detection + remediation pass, per spec.md §4.7 and the
// Orchestrator's tick step 3.
func (o *Optimizer) Scan(ctx context.Context) []Event {
	ooms, err := o.source.RecentOOMs(ctx, o.cfg.OOMLookback)
	if err != nil {
		if o.log != nil {
			o.log.Warnw("memory: scanning for OOMs failed", "error", err)
		}
		return nil
	}

	var produced []Event
	for _, oom := range ooms {
		if ev := o.remediate(ctx, oom); ev != nil {
			produced = append(produced, *ev)
		}
	}
	return produced
}

func (o *Optimizer) remediate(ctx context.Context, oom PodOOM) *Event {
	o.mu.Lock()
	if o.unsafe[oom.Deployment] {
		o.mu.Unlock()
		if o.log != nil {
			o.log.Warnw("memory: deployment marked UnsafeToOptimize, skipping", "deployment", oom.Deployment)
		}
		return nil
	}

	count := o.bumpEscalationLocked(oom.Deployment)
	if count > o.cfg.MaxOOMEscalations {
		o.unsafe[oom.Deployment] = true
		o.mu.Unlock()
		if o.log != nil {
			o.log.Errorw("memory: marking UnsafeToOptimize after repeated OOMs", "deployment", oom.Deployment, "escalations", count)
		}
		return nil
	}
	o.mu.Unlock()

	newLimit := newLimitFor(oom.PreviousLimit, o.cfg.MemoryGrowth, o.cfg.MemoryCap)
	newRequest := proportionalRequest(oom.PreviousLimit, oom.PreviousReq, newLimit)

	ev := Event{
		Pod: oom.Pod, Container: oom.Container, Deployment: oom.Deployment,
		ObservedTS: oom.TerminatedAt, PreviousLimit: oom.PreviousLimit, NewLimit: newLimit,
	}

	if err := o.patcher.PatchLimits(ctx, oom.Deployment, newLimit, newRequest); err != nil {
		if o.log != nil {
			o.log.Errorw("memory: patching limits failed", "deployment", oom.Deployment, "error", err)
		}
		o.record(ev)
		return &ev
	}

	ready, err := o.patcher.ObserveReadyWithLimit(ctx, oom.Deployment, newLimit)
	if err != nil && o.log != nil {
		o.log.Warnw("memory: could not confirm ready pod with new limit yet", "deployment", oom.Deployment, "error", err)
	}
	ev.Applied = ready

	o.record(ev)
	return &ev
}

func (o *Optimizer) bumpEscalationLocked(deployment string) int {
	if err := o.escalation.Add(deployment, 1, gocache.DefaultExpiration); err == nil {
		return 1
	}
	n, err := o.escalation.IncrementInt(deployment, 1)
	if err != nil {
		o.escalation.Set(deployment, 1, gocache.DefaultExpiration)
		return 1
	}
	return n
}

func (o *Optimizer) record(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, ev)
}

// History returns a copy of all recorded MemoryEvents.
func (o *Optimizer) History() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, len(o.history))
	copy(out, o.history)
	return out
}

// newLimitFor applies spec.md §4.7's remediation formula: never decreases
// a limit (spec.md §8 "Memory monotonicity"), caps at memory_cap.
func newLimitFor(previous int64, growth float64, ceiling int64) int64 {
	grown := int64(math.Ceil(float64(previous) * growth))
	if grown < previous {
		grown = previous
	}
	if grown > ceiling {
		grown = ceiling
	}
	return grown
}

func proportionalRequest(previousLimit, previousRequest, newLimit int64) int64 {
	if previousLimit <= 0 {
		return newLimit
	}
	ratio := float64(previousRequest) / float64(previousLimit)
	req := int64(math.Ceil(float64(newLimit) * ratio))
	if req < 1 {
		req = 1
	}
	return req
}

// ErrUnsafeToOptimize names the condition reached when escalation exhausts
// max_oom_escalations. Optimizer never returns it: remediate logs the
// condition and produces no Event for that deployment.
var ErrUnsafeToOptimize = fmt.Errorf("memory: deployment marked UnsafeToOptimize")
