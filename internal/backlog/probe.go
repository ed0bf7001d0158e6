// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package backlog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/config"
)

// New builds a Probe bound to a MonitoringClient and Config.
func New(client MonitoringClient, cfg config.Config, log *zap.SugaredLogger) *Probe {
	return &Probe{client: client, cfg: cfg, log: log, last: State{Unknown: true}}
}

// Run polls on cfg.BacklogInterval until ctx is cancelled, the same
// ticker-driven background-worker shape every Pulse probe uses.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.BacklogInterval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Probe) poll(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ExternalCallDeadline)
	defer cancel()

	sizePoints, err := p.client.Fetch(cctx, sizeMetric, p.cfg.BacklogInterval*2)
	if err != nil || len(sizePoints) == 0 {
		p.recordFailure(err)
		return
	}
	agePoints, err := p.client.Fetch(cctx, ageMetric, p.cfg.BacklogInterval*2)
	if err != nil || len(agePoints) == 0 {
		p.recordFailure(err)
		return
	}

	size := sizePoints[len(sizePoints)-1]
	age := agePoints[len(agePoints)-1]

	p.mu.Lock()
	defer p.mu.Unlock()

	st := State{Size: size.Value, OldestAgeS: age.Value, Fresh: true}
	if p.prevSize != nil && size.T.After(p.prevAt) {
		dt := size.T.Sub(p.prevAt).Seconds()
		if dt > 0 {
			rate := (size.Value - *p.prevSize) / dt
			st.GrowthRatePerS = &rate
			if rate > 0 {
				p.consecutiveGrowth++
			} else {
				p.consecutiveGrowth = 0
			}
		}
	}
	prev := size.Value
	p.prevSize = &prev
	p.prevAt = size.T

	p.staleCount = 0
	p.last = st
	if p.log != nil {
		p.log.Debugw("backlog refreshed", "size", st.Size, "oldest_age_s", st.OldestAgeS)
	}
}

func (p *Probe) recordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.staleCount++
	p.last.Fresh = false
	if p.staleCount > p.cfg.MaxStaleIntervals {
		p.last.Unknown = true
	}
	if p.log != nil {
		p.log.Warnw("backlog probe fetch failed", "error", err, "stale_count", p.staleCount)
	}
}

// Snapshot returns the last known BacklogState and whether it satisfies
// the "pressuring" predicate from spec.md §4.2.
func (p *Probe) Snapshot() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.last
	pressuring := st.Pressuring(p.cfg.BacklogSizeThreshold, p.cfg.BacklogAgeThreshold.Seconds(), p.consecutiveGrowth)
	return st, pressuring
}
