// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package clusterclient

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/pulseio/pulse/internal/pulseerr"
)

var deploymentsGR = schema.GroupResource{Group: "apps", Resource: "deployments"}

// CurrentReplicas satisfies replica.Scaler, reading spec.replicas through
// the scale subresource so it works uniformly across any scalable
// resource, not just Deployments.
func (c *Client) CurrentReplicas(ctx context.Context) (int, error) {
	s, err := c.scales.Scales(c.namespace).Get(ctx, deploymentsGR, c.deployment, metav1.GetOptions{})
	if err != nil {
		return 0, pulseerr.Classify("clusterclient.CurrentReplicas", err)
	}
	return int(s.Spec.Replicas), nil
}

// SetReplicas satisfies replica.Scaler. Conflicts surface as
// pulseerr.Conflict so ReplicaController's backoff.Retry refetches and
// retries, per spec.md §4.5.
func (c *Client) SetReplicas(ctx context.Context, target int) error {
	s, err := c.scales.Scales(c.namespace).Get(ctx, deploymentsGR, c.deployment, metav1.GetOptions{})
	if err != nil {
		return pulseerr.Classify("clusterclient.SetReplicas.get", err)
	}
	s.Spec.Replicas = int32(target)
	if _, err := c.scales.Scales(c.namespace).Update(ctx, deploymentsGR, s, metav1.UpdateOptions{}); err != nil {
		return pulseerr.Classify("clusterclient.SetReplicas.update", err)
	}
	return nil
}
