// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package clusterclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/pulseio/pulse/internal/nodescaler"
	"github.com/pulseio/pulse/internal/pulseerr"
)

// ListNodes satisfies nodemonitor.NodeSource.
func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, pulseerr.Classify("clusterclient.ListNodes", err)
	}
	return list.Items, nil
}

// ReadyNodeCount satisfies nodescaler.NodeAPI.
func (c *Client) ReadyNodeCount(ctx context.Context) (int, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, node := range nodes {
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				n++
			}
		}
	}
	return n, nil
}

// Cordon satisfies nodescaler.NodeAPI, using the same patch-or-replace
// idiom as k8s.io/kubectl/pkg/drain's CordonHelper: a merge patch on
// spec.unschedulable.
func (c *Client) Cordon(ctx context.Context, node string) error {
	return c.patchUnschedulable(ctx, node, true)
}

// Uncordon satisfies nodescaler.NodeAPI.
func (c *Client) Uncordon(ctx context.Context, node string) error {
	return c.patchUnschedulable(ctx, node, false)
}

func (c *Client) patchUnschedulable(ctx context.Context, node string, unschedulable bool) error {
	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{"unschedulable": unschedulable},
	})
	if err != nil {
		return fmt.Errorf("clusterclient: marshal cordon patch: %w", err)
	}
	_, err = c.clientset.CoreV1().Nodes().Patch(ctx, node, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return pulseerr.Classify("clusterclient.patchUnschedulable", err)
	}
	return nil
}

// ListEvictablePods satisfies nodescaler.NodeAPI: every pod scheduled on
// node, flagged DaemonSet so the caller skips it per spec.md §4.6.
func (c *Client) ListEvictablePods(ctx context.Context, node string) ([]nodescaler.PodRef, error) {
	list, err := c.clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + node,
	})
	if err != nil {
		return nil, pulseerr.Classify("clusterclient.ListEvictablePods", err)
	}

	out := make([]nodescaler.PodRef, 0, len(list.Items))
	for _, p := range list.Items {
		out = append(out, nodescaler.PodRef{
			Namespace: p.Namespace,
			Name:      p.Name,
			DaemonSet: ownedByDaemonSet(p),
		})
	}
	return out, nil
}

func ownedByDaemonSet(p corev1.Pod) bool {
	for _, ref := range p.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}

// Evict satisfies nodescaler.NodeAPI via the policy/v1 Eviction
// subresource. A PodDisruptionBudget rejection (429) is returned as a
// classified pulseerr.Error like any other failure; nodescaler.Scaler
// retries every failed eviction once regardless of its kind.
func (c *Client) Evict(ctx context.Context, pod nodescaler.PodRef, gracePeriod time.Duration) error {
	grace := int64(gracePeriod.Seconds())
	err := c.clientset.PolicyV1().Evictions(pod.Namespace).Evict(ctx, &policyv1.Eviction{
		ObjectMeta:    metav1.ObjectMeta{Name: pod.Name, Namespace: pod.Namespace},
		DeleteOptions: &metav1.DeleteOptions{GracePeriodSeconds: &grace},
	})
	if err != nil {
		return pulseerr.Classify("clusterclient.Evict", err)
	}
	return nil
}
