// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package replica

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/pulseerr"
)

// Scaler is the narrow cluster-API mutation surface ReplicaController
// depends on; ClusterClient implements it against the scale subresource.
type Scaler interface {
	CurrentReplicas(ctx context.Context) (int, error)
	SetReplicas(ctx context.Context, target int) error
}

// Controller is C5.
type Controller struct {
	scaler Scaler
	cfg    config.Config
	ledger *cooldown.Ledger
	rules  []Rule
	log    *zap.SugaredLogger
}

// New builds a Controller bound to a Scaler and the shared CooldownLedger
// the Orchestrator owns.
func New(scaler Scaler, cfg config.Config, ledger *cooldown.Ledger, log *zap.SugaredLogger) *Controller {
	return &Controller{scaler: scaler, cfg: cfg, ledger: ledger, rules: Rules(), log: log}
}

// CurrentReplicas reports the deployment's current replica count, the
// read half of the Scaler the Orchestrator needs before it can build a
// Context to Decide from.
func (c *Controller) CurrentReplicas(ctx context.Context) (int, error) {
	return c.scaler.CurrentReplicas(ctx)
}

// Decide runs the ordered rules from spec.md §4.5 and returns the first
// match, or nil for "no change" (rule 6).
func (c *Controller) Decide(ctx Context) *Intent {
	for _, r := range c.rules {
		if intent := r.Evaluate(ctx, c.cfg, c.ledger); intent != nil {
			return clampAndReturn(intent, c.cfg)
		}
	}
	return nil
}

func clampAndReturn(i *Intent, cfg config.Config) *Intent {
	i.TargetReplicas = clampReplicas(i.TargetReplicas, cfg.MinReplicas, cfg.MaxReplicas)
	return i
}

// Apply patches the deployment's replica count, retrying conflicts with
// bounded exponential backoff (100ms, 400ms, 1s) per spec.md §4.5. It then
// marks the cooldown ledger on success so the next tick's rule evaluation
// sees the updated window.
func (c *Controller) Apply(ctx context.Context, intent Intent) Outcome {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.Multiplier = 4
	eb.RandomizationFactor = 0
	eb.MaxInterval = 1 * time.Second
	b := backoff.WithMaxRetries(eb, 3)

	var lastErr error
	op := func() error {
		err := c.scaler.SetReplicas(ctx, intent.TargetReplicas)
		if err == nil {
			return nil
		}
		classified := pulseerr.Classify("replica.SetReplicas", err)
		lastErr = classified
		if pulseerr.Retryable(classified) {
			return classified
		}
		// Non-retryable: stop the backoff loop immediately.
		return backoff.Permanent(classified)
	}

	err := backoff.Retry(op, b)
	if err != nil {
		if c.log != nil {
			c.log.Errorw("replica apply failed", "target", intent.TargetReplicas, "error", err)
		}
		return Outcome{Applied: false, Target: intent.TargetReplicas, Err: lastErr}
	}

	c.markCooldowns(intent)
	return Outcome{Applied: true, Target: intent.TargetReplicas}
}

func (c *Controller) markCooldowns(intent Intent) {
	now := intent.GeneratedAt
	switch intent.Reason {
	case "critical bypass", "spike detected":
		c.ledger.Mark(cooldown.Critical, now, c.cfg.CooldownCritical)
	case "composite score scale-up":
		c.ledger.Mark(cooldown.ReplicaUp, now, c.cfg.CooldownReplicaUp)
	case "composite score scale-down":
		c.ledger.Mark(cooldown.ReplicaDown, now, c.cfg.CooldownReplicaDown)
	}
}
