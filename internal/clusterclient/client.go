// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package clusterclient is C10: the concrete k8s.io/client-go-backed
// implementation of every cluster-API read/mutate interface C3, C5, C6,
// and C7 depend on, per SPEC_FULL.md §4.10. Each dependent package only
// ever sees its own narrow interface, never this package.
package clusterclient

import (
	"k8s.io/client-go/kubernetes"
	scaleclient "k8s.io/client-go/scale"
)

// Client wraps a kubernetes.Interface and a scale subresource client
// targeting a single namespace/deployment, matching the Non-goal that
// scopes Pulse to one replica-set-style workload.
type Client struct {
	clientset kubernetes.Interface
	scales    scaleclient.ScalesGetter

	namespace  string
	deployment string
}

// New builds a Client. scales may be nil if the caller only needs the
// node/memory surfaces, not replica.Scaler.
func New(clientset kubernetes.Interface, scales scaleclient.ScalesGetter, namespace, deployment string) *Client {
	return &Client{clientset: clientset, scales: scales, namespace: namespace, deployment: deployment}
}
