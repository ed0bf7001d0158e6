// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"

	"github.com/pulseio/pulse/internal/backlog"
	"github.com/pulseio/pulse/internal/busclient"
	"github.com/pulseio/pulse/internal/clusterclient"
	"github.com/pulseio/pulse/internal/config"
	"github.com/pulseio/pulse/internal/cooldown"
	"github.com/pulseio/pulse/internal/decisionlog"
	"github.com/pulseio/pulse/internal/logging"
	"github.com/pulseio/pulse/internal/memory"
	"github.com/pulseio/pulse/internal/metricswindow"
	"github.com/pulseio/pulse/internal/nodemonitor"
	"github.com/pulseio/pulse/internal/nodescaler"
	"github.com/pulseio/pulse/internal/orchestrator"
	"github.com/pulseio/pulse/internal/replica"
	"github.com/pulseio/pulse/internal/scorer"
	"github.com/pulseio/pulse/internal/statusserver"
)

// startCommand implements 'pulse start', wiring every component under one
// context cancelled on SIGINT/SIGTERM and joined by a sync.WaitGroup,
// mirroring the teacher's cmd/cluster-agent start command's signal
// handling (minus its fx graph).
func startCommand(params *GlobalParams) *cobra.Command {
	var busMode string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the Pulse decision loop, node monitor, backlog probe, bus subscriber, and status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(params, busMode)
		},
	}
	cmd.Flags().StringVar(&busMode, "bus", "kafka", "bus subscriber implementation: kafka or memory (memory is for local development without a broker)")
	return cmd
}

func run(params *GlobalParams, busMode string) error {
	cfg, err := config.Load(params.ConfigFile)
	if err != nil {
		return fmt.Errorf("start: loading config: %w", err)
	}

	log, err := logging.New(params.LogLevel, params.Debug)
	if err != nil {
		return fmt.Errorf("start: building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	restCfg, err := clusterclient.BuildRestConfig(cfg.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("start: building kube config: %w", err)
	}
	cluster, err := clusterclient.NewFromRestConfig(restCfg, cfg.TargetNamespace, cfg.TargetDeployment)
	if err != nil {
		return fmt.Errorf("start: building cluster client: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("start: building clientset: %w", err)
	}
	resizer := clusterclient.NewDirectNodeResizer(clientset)

	monitoringClient, err := backlog.NewPrometheusClient(cfg.MonitoringAddr)
	if err != nil {
		return fmt.Errorf("start: building monitoring client: %w", err)
	}

	window := metricswindow.New(cfg.WindowSeconds, cfg.MaxSamples, cfg.StaleSkew)
	sc := scorer.New(cfg)
	bp := backlog.New(monitoringClient, cfg, log)
	ledger := cooldown.New()
	decisions := decisionlog.New(cfg.DecisionRetention)

	nodeEvents := make(chan nodemonitor.Event, 64)
	nm := nodemonitor.New(cluster, cfg, log, nodeEvents)

	rc := replica.New(cluster, cfg, ledger, log)
	ns := nodescaler.New(cluster, resizer, cfg, ledger, log)
	mo := memory.New(cluster, cluster, cfg, log)

	metrics := statusserver.NewMetrics()

	orch := orchestrator.New(orchestrator.Deps{
		Window: window, Scorer: sc, Backlog: bp, Nodes: nm, Replica: rc,
		NodeScaler: ns, Memory: mo, Ledger: ledger, Decisions: decisions,
		NodeEvents: nodeEvents, OnDecision: metrics.ObserveDecision,
	}, cfg, log, 256)

	var subscriber busclient.Subscriber
	if busMode == "memory" {
		subscriber = busclient.NewMemBus(256, metrics)
	} else {
		subscriber = busclient.NewSaramaSubscriber(cfg.BusBrokers, cfg.BusTopic, cfg.BusConsumerGroup, log, metrics)
	}

	status := statusserver.New(cfg.StatusAddr, orch, metrics, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("start: received shutdown signal")
		cancel()
	}()

	var wg sync.WaitGroup
	runWorker := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("start: worker exited with error", "worker", name, "error", err)
			}
		}()
	}

	runWorker("node-monitor", func(ctx context.Context) error { nm.Run(ctx); return nil })
	runWorker("backlog-probe", func(ctx context.Context) error { bp.Run(ctx); return nil })
	runWorker("orchestrator", func(ctx context.Context) error { orch.Run(ctx); return nil })
	runWorker("bus-subscriber", func(ctx context.Context) error { return subscriber.Run(ctx, orch.Inbox()) })
	runWorker("status-server", status.Run)

	log.Infow("start: pulse is running", "status_addr", cfg.StatusAddr, "namespace", cfg.TargetNamespace, "deployment", cfg.TargetDeployment)

	wg.Wait()
	return nil
}
