// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package orchestrator implements C8: the main decision tick and the
// event ingestion that feeds it, per spec.md §4.8.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/memory"
	"github.com/pulseio/pulse/internal/metricswindow"
	"github.com/pulseio/pulse/internal/nodemonitor"
	"github.com/pulseio/pulse/internal/nodescaler"
	"github.com/pulseio/pulse/internal/replica"
	"github.com/pulseio/pulse/internal/scorer"
)

// Orchestrator is C8. It exclusively owns the MetricsWindow, the
// CooldownLedger, and the Decision log (spec.md §3's ownership rule); every
// other component it calls hands back snapshot copies.
type Orchestrator struct {
	cfg config.Config
	log *zap.SugaredLogger

	window  *metricswindow.Window
	scorer  *scorer.Scorer
	backlog *backlog.Probe
	nodes   *nodemonitor.Monitor
	replica *replica.Controller
	nscale  *nodescaler.Scaler
	mem     *memory.Optimizer

	ledger    *cooldown.Ledger
	decisions decisionlog.Sink

	inbox      chan metricswindow.Sample
	nodeEvents chan nodemonitor.Event

	lastReplicaChangeAt time.Time
	lastSeverity        metricswindow.Severity

	onDecision func(decisionlog.Decision)
}

// Deps bundles every collaborator the Orchestrator drives. nodeEvents must
// be the same channel nodemonitor.Monitor was constructed with.
type Deps struct {
	Window     *metricswindow.Window
	Scorer     *scorer.Scorer
	Backlog    *backlog.Probe
	Nodes      *nodemonitor.Monitor
	Replica    *replica.Controller
	NodeScaler *nodescaler.Scaler
	Memory     *memory.Optimizer
	Ledger     *cooldown.Ledger
	Decisions  decisionlog.Sink
	NodeEvents chan nodemonitor.Event

	// OnDecision, if set, is called once for every Decision the
	// Orchestrator appends; cmd/pulse wires this to
	// statusserver.Metrics.ObserveDecision so pulse_decisions_total never
	// double-counts a Decision across ticks.
	OnDecision func(decisionlog.Decision)
}

// New builds an Orchestrator. inboxSize bounds the bus-sample mailbox; the
// Orchestrator's ingest step drains it without blocking the bus consumer,
// per spec.md §5.
func New(d Deps, cfg config.Config, log *zap.SugaredLogger, inboxSize int) *Orchestrator {
	if inboxSize <= 0 {
		inboxSize = 256
	}
	return &Orchestrator{
		cfg: cfg, log: log,
		window: d.Window, scorer: d.Scorer, backlog: d.Backlog, nodes: d.Nodes,
		replica: d.Replica, nscale: d.NodeScaler, mem: d.Memory,
		ledger: d.Ledger, decisions: d.Decisions,
		inbox:        make(chan metricswindow.Sample, inboxSize),
		nodeEvents:   d.NodeEvents,
		lastSeverity: metricswindow.Normal,
		onDecision:   d.OnDecision,
	}
}

// Inbox is the mailbox BusSubscriber writes decoded samples into. Sends
// must never block; callers should select on ctx.Done() alongside a send.
func (o *Orchestrator) Inbox() chan<- metricswindow.Sample { return o.inbox }

// Run drives the tick loop on cfg.TickInterval until ctx is cancelled,
// mirroring the teacher's ticker-driven processingLoop idiom.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx, time.Now())
		}
	}
}

// Tick runs one full decision cycle, in the exact order from spec.md §4.8.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) {
	o.ingest()
	o.drainNodeEvents(ctx, now)
	o.window.Trim(now)

	o.scanMemory(ctx, now)

	stats := o.window.Snapshot(now, 2*o.cfg.TickInterval)
	result := o.scorer.Score(stats)

	backlogState, pressuring := o.backlog.Snapshot()

	o.decideReplicas(ctx, now, stats, result, backlogState, pressuring, o.lastSeverity)
	o.actOnNodeHealth(ctx, now)
}

// ingest drains any bus samples queued since the last tick into the
// MetricsWindow, never blocking the producer (spec.md §4.8 step 1).
func (o *Orchestrator) ingest() {
	for {
		select {
		case s := <-o.inbox:
			o.lastSeverity = s.Severity
			if err := o.window.Insert(s); err != nil && o.log != nil {
				o.log.Debugw("orchestrator: dropping sample", "error", err, "source", s.Source)
			}
		default:
			return
		}
	}
}

// drainNodeEvents applies NodeMonitor's quarantine requests immediately:
// cordon on NodeLost, uncordon on confirmed NodeRecovered. Capacity events
// are handled separately in actOnNodeHealth from the current Snapshot, so
// they are only logged here.
func (o *Orchestrator) drainNodeEvents(ctx context.Context, now time.Time) {
	for {
		select {
		case ev := <-o.nodeEvents:
			switch ev.Kind {
			case nodemonitor.NodeLost:
				if err := o.nscale.Cordon(ctx, ev.Node); err != nil && o.log != nil {
					o.log.Warnw("orchestrator: cordon failed", "node", ev.Node, "error", err)
				}
			case nodemonitor.NodeRecovered:
				if err := o.nscale.Uncordon(ctx, ev.Node); err != nil && o.log != nil {
					o.log.Warnw("orchestrator: uncordon failed", "node", ev.Node, "error", err)
				}
			}
		default:
			return
		}
	}
}

func (o *Orchestrator) scanMemory(ctx context.Context, now time.Time) {
	for _, ev := range o.mem.Scan(ctx) {
		o.record(decisionlog.Decision{
			TS: now, Kind: decisionlog.MemoryPatch,
			From: "", To: "", Reason: "oom remediation: " + ev.Deployment,
			Success: ev.Applied,
		})
	}
}

func (o *Orchestrator) decideReplicas(ctx context.Context, now time.Time, stats metricswindow.Stats, result scorer.Result, backlogState backlog.State, pressuring bool, severity metricswindow.Severity) {
	current, err := o.replicaCurrent(ctx)
	if err != nil {
		if o.log != nil {
			o.log.Warnw("orchestrator: could not read current replicas", "error", err)
		}
		return
	}

	rctx := replica.Context{
		Now: now, Current: current, Stats: stats, Score: result.Score, Spike: result.Spike,
		Severity: severity, Backlog: backlogState, Pressuring: pressuring,
	}

	intent := o.replica.Decide(rctx)
	if intent == nil {
		o.record(decisionlog.Decision{TS: now, Kind: decisionlog.Hold, From: itoa(current), To: itoa(current), Reason: "no rule matched", Success: true})
		return
	}

	outcome := o.replica.Apply(ctx, *intent)
	o.record(decisionlog.Decision{
		TS: now, Kind: kindFor(intent.Reason), From: itoa(current), To: itoa(outcome.Target),
		Reason: intent.Reason, Severity: string(intent.Severity), Success: outcome.Applied,
	})
	if outcome.Applied && outcome.Target != current {
		o.lastReplicaChangeAt = now
	}
}

// record appends d to the Decision log and notifies the metrics hook, so
// every Append site shares one place the count is reported from.
func (o *Orchestrator) record(d decisionlog.Decision) {
	o.decisions.Append(d)
	if o.onDecision != nil {
		o.onDecision(d)
	}
}

func (o *Orchestrator) replicaCurrent(ctx context.Context) (int, error) {
	return o.replica.CurrentReplicas(ctx)
}

// actOnNodeHealth asks NodeScaler to grow the pool when NodeMonitor
// reports degraded or critical capacity (spec.md §4.8 step 6); pod
// scale-up above already ran first within this same tick, satisfying the
// "pod before node" ordering invariant.
func (o *Orchestrator) actOnNodeHealth(ctx context.Context, now time.Time) {
	snap := o.nodes.Snapshot()
	if snap.TotalNodeCount == 0 || snap.CapacityLoss <= 0 {
		return
	}

	lost := 0
	for _, n := range snap.Nodes {
		if n.Quarantined {
			lost++
		}
	}
	if lost == 0 {
		return
	}

	critical := snap.CapacityLoss >= o.cfg.CriticalCapacityLoss
	if err := o.nscale.ScaleUp(ctx, lost, now, critical); err != nil {
		if o.log != nil {
			o.log.Warnw("orchestrator: node scale-up failed", "error", err, "lost", lost)
		}
		o.record(decisionlog.Decision{TS: now, Kind: decisionlog.NodeScale, Reason: "capacity loss response", Success: false})
		return
	}
	o.record(decisionlog.Decision{TS: now, Kind: decisionlog.NodeScale, To: itoa(lost), Reason: "capacity loss response", Success: true})
}

// ScaleDownNodesIfDue is the policy entry point for shrinking the node
// pool; spec.md §4.8's ordering invariant requires at least one full tick
// to elapse after any replica change before it may run. Nothing in
// spec.md automatically triggers node scale-down from the tick loop
// itself, so this is exposed for an external policy (e.g. a dashboard
// action) to call safely.
func (o *Orchestrator) ScaleDownNodesIfDue(ctx context.Context, nodes []string, now time.Time) error {
	if now.Sub(o.lastReplicaChangeAt) < o.cfg.TickInterval {
		return fmt.Errorf("orchestrator: node scale-down must wait a full tick after a replica change")
	}
	return o.nscale.ScaleDown(ctx, nodes, now)
}

// Snapshot produces the read-only StatusSnapshot for C9.
func (o *Orchestrator) Snapshot(now time.Time) StatusSnapshot {
	nodeSnap := o.nodes.Snapshot()
	backlogState, pressuring := o.backlog.Snapshot()

	cooldowns := map[string]float64{}
	for _, scope := range []cooldown.Scope{cooldown.ReplicaUp, cooldown.ReplicaDown, cooldown.NodeUp, cooldown.NodeDown, cooldown.Critical} {
		cooldowns[string(scope)] = o.ledger.RemainingSeconds(scope, now)
	}

	return StatusSnapshot{
		GeneratedAt:       now,
		RecentDecisions:   o.decisions.Tail(50),
		CooldownRemaining: cooldowns,
		Nodes:             nodeSnap,
		Backlog:           backlogState,
		BacklogPressuring: pressuring,
	}
}

func kindFor(reason string) decisionlog.Kind {
	switch reason {
	case "critical bypass":
		return decisionlog.CriticalBypass
	case "spike detected":
		return decisionlog.SpikeResponse
	case "backlog pressure":
		return decisionlog.BacklogScale
	default:
		return decisionlog.ReplicaScale
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
