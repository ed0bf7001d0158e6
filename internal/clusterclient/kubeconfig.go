// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package clusterclient

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/scale"
	"k8s.io/client-go/tools/clientcmd"
)

// BuildRestConfig resolves a *rest.Config the way every in-cluster Pulse
// deployment and every local `pulse start` run needs to: in-cluster
// service account config first, then the kubeconfig_path setting, then
// $KUBECONFIG or ~/.kube/config.
func BuildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	if kubeconfigPath == "" {
		kubeconfigPath = defaultKubeconfigPath()
	}
	if kubeconfigPath == "" {
		return nil, fmt.Errorf("clusterclient: not running in-cluster and no kubeconfig found")
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("clusterclient: loading kubeconfig %s: %w", kubeconfigPath, err)
	}
	return cfg, nil
}

// NewFromRestConfig builds the clientset and the scale subresource client
// Client wraps, resolving the scale GroupVersionKind for Deployments via
// the discovery-backed resolver the same way kube-controller-manager and
// kubectl's autoscale command build theirs.
func NewFromRestConfig(cfg *rest.Config, namespace, deployment string) (*Client, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("clusterclient: building clientset: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("clusterclient: building discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))
	scaleKindResolver := scale.NewDiscoveryScaleKindResolver(discoveryClient)

	scaleClient, err := scale.NewForConfig(cfg, mapper, dynamic.LegacyAPIPathResolverFunc, scaleKindResolver)
	if err != nil {
		return nil, fmt.Errorf("clusterclient: building scale client: %w", err)
	}

	return New(clientset, scaleClient, namespace, deployment), nil
}

func defaultKubeconfigPath() string {
	if p := os.Getenv("KUBECONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}
