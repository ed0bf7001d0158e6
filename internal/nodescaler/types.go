// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package nodescaler implements C6: cordon/drain/resize of the node pool,
// with the strict drain ordering and partial-failure semantics from
// spec.md §4.6.
package nodescaler

import (
	"context"
	"time"
)

// PodRef identifies one pod to evict during a drain.
type PodRef struct {
	Namespace string
	Name      string
	DaemonSet bool
}

// NodeAPI is the narrow cluster-API mutation surface NodeScaler depends
// on; ClusterClient implements it against client-go.
type NodeAPI interface {
	Cordon(ctx context.Context, node string) error
	Uncordon(ctx context.Context, node string) error
	ListEvictablePods(ctx context.Context, node string) ([]PodRef, error)
	Evict(ctx context.Context, pod PodRef, gracePeriod time.Duration) error
	ReadyNodeCount(ctx context.Context) (int, error)
}

// NodePoolResizer is the Open Question from spec.md §9: the exact resize
// mechanism is provider-defined, so NodeScaler only ever calls Resize.
type NodePoolResizer interface {
	// Resize changes the desired node pool size by delta (positive to
	// grow, negative to shrink by removing the given node names).
	Resize(ctx context.Context, delta int, remove []string) error
}

// DrainStep names where in the drain protocol a failure happened, for
// DrainIncomplete.
type DrainStep string

const (
	StepCordon DrainStep = "cordon"
	StepEvict  DrainStep = "evict"
	StepRemove DrainStep = "remove"
)

// DrainResult reports how far a drain got.
type DrainResult struct {
	Node      string
	Completed bool
	FailedAt  DrainStep
	Err       error
	Skipped   []PodRef
}
