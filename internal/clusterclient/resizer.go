// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package clusterclient

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/pulseio/pulse/internal/pulseerr"
)

// DirectNodeResizer satisfies nodescaler.NodePoolResizer by deleting node
// objects directly. It is the exact provider-agnostic resize mechanism
// the Open Question in spec.md §9 leaves unspecified; a cloud-provider
// node-pool scaling API is a documented extension point behind the same
// interface, not implemented here.
type DirectNodeResizer struct {
	clientset kubernetes.Interface
}

// NewDirectNodeResizer builds a DirectNodeResizer.
func NewDirectNodeResizer(clientset kubernetes.Interface) *DirectNodeResizer {
	return &DirectNodeResizer{clientset: clientset}
}

// Resize implements nodescaler.NodePoolResizer. A negative delta deletes
// the named nodes (the only mutation this mechanism can express); a
// positive delta has no direct-delete equivalent and is reported as a
// permission error so it surfaces instead of silently no-op'ing.
func (r *DirectNodeResizer) Resize(ctx context.Context, delta int, remove []string) error {
	if delta > 0 {
		return pulseerr.New(pulseerr.Permission, "clusterclient.Resize",
			fmt.Errorf("clusterclient: direct-delete resizer cannot grow the node pool; wire a provider node-pool API for scale-up"))
	}
	for _, name := range remove {
		if err := r.clientset.CoreV1().Nodes().Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
			return pulseerr.Classify("clusterclient.Resize.delete", err)
		}
	}
	return nil
}
