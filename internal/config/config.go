// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package config loads and validates the single immutable configuration
// value every Pulse component is constructed from.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of tunables from the Pulse specification. It is
// loaded once at startup and passed by value into every component
// constructor; components never mutate it. There is no reload path: a
// changed configuration takes effect on restart.
type Config struct {
	WindowSeconds time.Duration
	MaxSamples    int
	StaleSkew     time.Duration

	WCPU, WLat, WErr                      float64
	CPUTarget, LatencyTargetMs, ErrTarget float64

	ScaleUpScore, ScaleDownScore, CriticalScore float64
	SpikeRatio                                  float64

	MinReplicas, MaxReplicas int
	UpStep, DownStep         int
	CriticalFactor           float64
	SpikeFactor              float64
	BacklogStep              int

	CooldownReplicaUp, CooldownReplicaDown time.Duration
	CooldownNodeUp, CooldownNodeDown       time.Duration
	CooldownCritical                       time.Duration
	MinNodeActionGap                       time.Duration

	BacklogInterval      time.Duration
	BacklogSizeThreshold float64
	BacklogAgeThreshold  time.Duration
	MaxStaleIntervals    int

	NodePollInterval     time.Duration
	NotReadyGrace        time.Duration
	CriticalCapacityLoss float64

	MemoryGrowth      float64
	MemoryCap         int64
	MaxOOMEscalations int
	OOMLookback       time.Duration

	TickInterval         time.Duration
	DecisionRetention    int
	ExternalCallDeadline time.Duration
	DrainEvictDeadline   time.Duration
	DrainGracePeriod     time.Duration

	StatusAddr string

	TargetNamespace  string
	TargetDeployment string

	BusBrokers       []string
	BusTopic         string
	BusConsumerGroup string

	MonitoringAddr string
	KubeconfigPath string
}

// Default returns the built-in defaults from spec.md §6, before any
// environment or file overlay is applied.
func Default() Config {
	return Config{
		WindowSeconds: 300 * time.Second,
		MaxSamples:    600,
		StaleSkew:     2 * time.Second,

		WCPU: 0.4, WLat: 0.4, WErr: 0.2,
		CPUTarget: 70, LatencyTargetMs: 300, ErrTarget: 1.0,

		ScaleUpScore: 1.2, ScaleDownScore: 0.5, CriticalScore: 2.0,
		SpikeRatio: 2.0,

		MinReplicas: 1, MaxReplicas: 50,
		UpStep: 2, DownStep: 1,
		CriticalFactor: 2.0,
		SpikeFactor:    1.5,
		BacklogStep:    1,

		CooldownReplicaUp: 180 * time.Second, CooldownReplicaDown: 300 * time.Second,
		CooldownNodeUp: 300 * time.Second, CooldownNodeDown: 600 * time.Second,
		CooldownCritical: 30 * time.Second,
		MinNodeActionGap: 60 * time.Second,

		BacklogInterval:      15 * time.Second,
		BacklogSizeThreshold: 10000,
		BacklogAgeThreshold:  60 * time.Second,
		MaxStaleIntervals:    3,

		NodePollInterval:     10 * time.Second,
		NotReadyGrace:        60 * time.Second,
		CriticalCapacityLoss: 0.30,

		MemoryGrowth:      1.5,
		MemoryCap:         4 << 30, // 4Gi
		MaxOOMEscalations: 3,
		OOMLookback:       10 * time.Minute,

		TickInterval:         10 * time.Second,
		DecisionRetention:    500,
		ExternalCallDeadline: 5 * time.Second,
		DrainEvictDeadline:   45 * time.Second,
		DrainGracePeriod:     30 * time.Second,

		StatusAddr: ":8080",

		TargetNamespace:  "default",
		TargetDeployment: "pulse-managed-app",

		BusBrokers:       []string{"localhost:9092"},
		BusTopic:         "pulse.metrics",
		BusConsumerGroup: "pulse-orchestrator",

		MonitoringAddr: "http://prometheus:9090",
		KubeconfigPath: "",
	}
}

// Load builds a viper instance seeded with Default(), then overlays an
// optional config file and PULSE_-prefixed environment variables, the same
// layering the teacher uses for its own config: environment values win over
// the file, and the file wins over the defaults. No command-line flag is
// bound to a config key.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("pulse")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	d := Default()
	bindDefaults(v, d)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	cfg := Config{
		WindowSeconds: v.GetDuration("window_seconds"),
		MaxSamples:    v.GetInt("max_samples"),
		StaleSkew:     v.GetDuration("stale_skew"),

		WCPU: v.GetFloat64("w_cpu"), WLat: v.GetFloat64("w_lat"), WErr: v.GetFloat64("w_err"),
		CPUTarget:       v.GetFloat64("cpu_target"),
		LatencyTargetMs: v.GetFloat64("latency_target_ms"),
		ErrTarget:       v.GetFloat64("error_target_pct"),

		ScaleUpScore:   v.GetFloat64("scale_up_score"),
		ScaleDownScore: v.GetFloat64("scale_down_score"),
		CriticalScore:  v.GetFloat64("critical_score"),
		SpikeRatio:     v.GetFloat64("spike_ratio"),

		MinReplicas: v.GetInt("min_replicas"),
		MaxReplicas: v.GetInt("max_replicas"),
		UpStep:      v.GetInt("up_step"),
		DownStep:    v.GetInt("down_step"),

		CriticalFactor: v.GetFloat64("critical_factor"),
		SpikeFactor:    v.GetFloat64("spike_factor"),
		BacklogStep:    v.GetInt("backlog_step"),

		CooldownReplicaUp:   v.GetDuration("cooldown_replica_up"),
		CooldownReplicaDown: v.GetDuration("cooldown_replica_down"),
		CooldownNodeUp:      v.GetDuration("cooldown_node_up"),
		CooldownNodeDown:    v.GetDuration("cooldown_node_down"),
		CooldownCritical:    v.GetDuration("cooldown_critical"),
		MinNodeActionGap:    v.GetDuration("min_node_action_gap"),

		BacklogInterval:      v.GetDuration("backlog_interval"),
		BacklogSizeThreshold: v.GetFloat64("backlog_size_threshold"),
		BacklogAgeThreshold:  v.GetDuration("backlog_age_threshold"),
		MaxStaleIntervals:    v.GetInt("max_stale_intervals"),

		NodePollInterval:     v.GetDuration("node_poll_interval"),
		NotReadyGrace:        v.GetDuration("not_ready_grace"),
		CriticalCapacityLoss: v.GetFloat64("critical_capacity_loss"),

		MemoryGrowth:      v.GetFloat64("memory_growth"),
		MemoryCap:         v.GetInt64("memory_cap"),
		MaxOOMEscalations: v.GetInt("max_oom_escalations"),
		OOMLookback:       v.GetDuration("oom_lookback"),

		TickInterval:         v.GetDuration("tick_interval"),
		DecisionRetention:    v.GetInt("decision_retention"),
		ExternalCallDeadline: v.GetDuration("external_call_deadline"),
		DrainEvictDeadline:   v.GetDuration("drain_evict_deadline"),
		DrainGracePeriod:     v.GetDuration("drain_grace_period"),

		StatusAddr: v.GetString("status_addr"),

		TargetNamespace:  v.GetString("target_namespace"),
		TargetDeployment: v.GetString("target_deployment"),

		BusBrokers:       v.GetStringSlice("bus_brokers"),
		BusTopic:         v.GetString("bus_topic"),
		BusConsumerGroup: v.GetString("bus_consumer_group"),

		MonitoringAddr: v.GetString("monitoring_addr"),
		KubeconfigPath: v.GetString("kubeconfig_path"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, d Config) {
	v.SetDefault("window_seconds", d.WindowSeconds)
	v.SetDefault("max_samples", d.MaxSamples)
	v.SetDefault("stale_skew", d.StaleSkew)
	v.SetDefault("w_cpu", d.WCPU)
	v.SetDefault("w_lat", d.WLat)
	v.SetDefault("w_err", d.WErr)
	v.SetDefault("cpu_target", d.CPUTarget)
	v.SetDefault("latency_target_ms", d.LatencyTargetMs)
	v.SetDefault("error_target_pct", d.ErrTarget)
	v.SetDefault("scale_up_score", d.ScaleUpScore)
	v.SetDefault("scale_down_score", d.ScaleDownScore)
	v.SetDefault("critical_score", d.CriticalScore)
	v.SetDefault("spike_ratio", d.SpikeRatio)
	v.SetDefault("min_replicas", d.MinReplicas)
	v.SetDefault("max_replicas", d.MaxReplicas)
	v.SetDefault("up_step", d.UpStep)
	v.SetDefault("down_step", d.DownStep)
	v.SetDefault("critical_factor", d.CriticalFactor)
	v.SetDefault("spike_factor", d.SpikeFactor)
	v.SetDefault("backlog_step", d.BacklogStep)
	v.SetDefault("cooldown_replica_up", d.CooldownReplicaUp)
	v.SetDefault("cooldown_replica_down", d.CooldownReplicaDown)
	v.SetDefault("cooldown_node_up", d.CooldownNodeUp)
	v.SetDefault("cooldown_node_down", d.CooldownNodeDown)
	v.SetDefault("cooldown_critical", d.CooldownCritical)
	v.SetDefault("min_node_action_gap", d.MinNodeActionGap)
	v.SetDefault("backlog_interval", d.BacklogInterval)
	v.SetDefault("backlog_size_threshold", d.BacklogSizeThreshold)
	v.SetDefault("backlog_age_threshold", d.BacklogAgeThreshold)
	v.SetDefault("max_stale_intervals", d.MaxStaleIntervals)
	v.SetDefault("node_poll_interval", d.NodePollInterval)
	v.SetDefault("not_ready_grace", d.NotReadyGrace)
	v.SetDefault("critical_capacity_loss", d.CriticalCapacityLoss)
	v.SetDefault("memory_growth", d.MemoryGrowth)
	v.SetDefault("memory_cap", d.MemoryCap)
	v.SetDefault("max_oom_escalations", d.MaxOOMEscalations)
	v.SetDefault("oom_lookback", d.OOMLookback)
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("decision_retention", d.DecisionRetention)
	v.SetDefault("external_call_deadline", d.ExternalCallDeadline)
	v.SetDefault("drain_evict_deadline", d.DrainEvictDeadline)
	v.SetDefault("drain_grace_period", d.DrainGracePeriod)
	v.SetDefault("status_addr", d.StatusAddr)
	v.SetDefault("target_namespace", d.TargetNamespace)
	v.SetDefault("target_deployment", d.TargetDeployment)
	v.SetDefault("bus_brokers", d.BusBrokers)
	v.SetDefault("bus_topic", d.BusTopic)
	v.SetDefault("bus_consumer_group", d.BusConsumerGroup)
	v.SetDefault("monitoring_addr", d.MonitoringAddr)
	v.SetDefault("kubeconfig_path", d.KubeconfigPath)
}

// Validate enforces the invariants spec.md §6 calls out explicitly: weights
// summing to 1, and a sane replica range.
func (c Config) Validate() error {
	sum := c.WCPU + c.WLat + c.WErr
	if sum < 1-1e-6 || sum > 1+1e-6 {
		return fmt.Errorf("config: w_cpu+w_lat+w_err must sum to 1, got %f", sum)
	}
	if c.MinReplicas < 0 || c.MinReplicas > c.MaxReplicas {
		return fmt.Errorf("config: min_replicas (%d) must be <= max_replicas (%d) and >= 0", c.MinReplicas, c.MaxReplicas)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.WindowSeconds <= 0 || c.MaxSamples <= 0 {
		return fmt.Errorf("config: window_seconds and max_samples must be positive")
	}
	if c.SpikeRatio <= 0 {
		return fmt.Errorf("config: spike_ratio must be positive")
	}
	return nil
}
