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
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/pulseio/pulse/internal/memory"
	"github.com/pulseio/pulse/internal/pulseerr"
)

// RecentOOMs satisfies memory.PodOOMSource, scanning container statuses
// for OOMKilled terminations within lookback, per spec.md §4.7.
func (c *Client) RecentOOMs(ctx context.Context, lookback time.Duration) ([]memory.PodOOM, error) {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, pulseerr.Classify("clusterclient.RecentOOMs", err)
	}

	cutoff := time.Now().Add(-lookback)
	var out []memory.PodOOM
	for _, pod := range pods.Items {
		deployment := c.deploymentOwning(ctx, pod)
		if deployment == "" {
			continue
		}
		for _, cs := range pod.Status.ContainerStatuses {
			term := cs.LastTerminationState.Terminated
			if term == nil || term.Reason != "OOMKilled" || term.FinishedAt.Time.Before(cutoff) {
				continue
			}
			limit, req := containerMemory(pod, cs.Name)
			out = append(out, memory.PodOOM{
				Pod: pod.Name, Namespace: pod.Namespace, Container: cs.Name, Deployment: deployment,
				TerminatedAt: term.FinishedAt.Time, PreviousLimit: limit, PreviousReq: req,
			})
		}
	}
	return out, nil
}

// PatchLimits satisfies memory.LimitPatcher: a strategic merge patch against
// the deployment's first container, matching spec.md's single-workload
// scope (this module manages one replica-set-style deployment).
func (c *Client) PatchLimits(ctx context.Context, deployment string, newLimit, newRequest int64) error {
	dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return pulseerr.Classify("clusterclient.PatchLimits.get", err)
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("clusterclient: deployment %s has no containers to patch", deployment)
	}
	containerName := dep.Spec.Template.Spec.Containers[0].Name

	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []map[string]interface{}{{
						"name": containerName,
						"resources": map[string]interface{}{
							"limits":   map[string]interface{}{"memory": resource.NewQuantity(newLimit, resource.BinarySI).String()},
							"requests": map[string]interface{}{"memory": resource.NewQuantity(newRequest, resource.BinarySI).String()},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("clusterclient: marshal memory patch: %w", err)
	}

	_, err = c.clientset.AppsV1().Deployments(c.namespace).Patch(ctx, deployment, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return pulseerr.Classify("clusterclient.PatchLimits.patch", err)
	}
	return nil
}

// ObserveReadyWithLimit satisfies memory.LimitPatcher: true once at least
// one ready pod of deployment carries the new limit, per spec.md §4.7's
// apply confirmation.
func (c *Client) ObserveReadyWithLimit(ctx context.Context, deployment string, limit int64) (bool, error) {
	dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return false, pulseerr.Classify("clusterclient.ObserveReadyWithLimit.get", err)
	}
	selector := metav1.FormatLabelSelector(dep.Spec.Selector)

	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return false, pulseerr.Classify("clusterclient.ObserveReadyWithLimit.list", err)
	}

	for _, pod := range pods.Items {
		if !podReady(pod) {
			continue
		}
		for _, container := range pod.Spec.Containers {
			if q, ok := container.Resources.Limits[corev1.ResourceMemory]; ok && q.Value() == limit {
				return true, nil
			}
		}
	}
	return false, nil
}

func podReady(pod corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func containerMemory(pod corev1.Pod, containerName string) (limit, request int64) {
	for _, c := range pod.Spec.Containers {
		if c.Name != containerName {
			continue
		}
		if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			limit = q.Value()
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			request = q.Value()
		}
	}
	return limit, request
}

// deploymentOwning walks Pod -> ReplicaSet -> Deployment ownership,
// returning "" if the pod isn't owned by a ReplicaSet-backed Deployment.
func (c *Client) deploymentOwning(ctx context.Context, pod corev1.Pod) string {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind != "ReplicaSet" {
			continue
		}
		rs, err := c.clientset.AppsV1().ReplicaSets(pod.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			return ""
		}
		for _, rsRef := range rs.OwnerReferences {
			if rsRef.Kind == "Deployment" {
				return rsRef.Name
			}
		}
	}
	return ""
}
