// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package busclient implements C11: the message-bus ingress adapter from
// spec.md §6, decoding {cpu, latency, error_rate, severity?, timestamp?}
// JSON messages into metricswindow.Samples and handing them to the
// Orchestrator's inbox.
package busclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/metricswindow"
)

// Subscriber is the narrow ingress seam the Orchestrator depends on; a
// Sarama consumer group backs production, MemBus backs tests and local
// development.
type Subscriber interface {
	Run(ctx context.Context, out chan<- metricswindow.Sample) error
}

// rawEvent is the wire shape of one bus message, per spec.md §6. Unknown
// fields are ignored by encoding/json's default decode behavior.
type rawEvent struct {
	CPU       float64  `json:"cpu"`
	Latency   float64  `json:"latency"`
	ErrorRate float64  `json:"error_rate"`
	Severity  *string  `json:"severity,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// decode turns one raw message body into a Sample, or an error if the
// message is malformed. A missing timestamp defaults to receiveTime.
func decode(body []byte, receiveTime time.Time) (metricswindow.Sample, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return metricswindow.Sample{}, fmt.Errorf("busclient: malformed message: %w", err)
	}

	t := receiveTime
	if raw.Timestamp != nil {
		t = time.Unix(0, int64(*raw.Timestamp*float64(time.Second)))
	}

	sev := metricswindow.Normal
	if raw.Severity != nil {
		switch metricswindow.Severity(*raw.Severity) {
		case metricswindow.Warning:
			sev = metricswindow.Warning
		case metricswindow.Critical:
			sev = metricswindow.Critical
		case metricswindow.Normal:
			sev = metricswindow.Normal
		default:
			return metricswindow.Sample{}, fmt.Errorf("busclient: unknown severity %q", *raw.Severity)
		}
	}

	return metricswindow.Sample{
		T:            t,
		CPUPct:       raw.CPU,
		LatencyP95Ms: raw.Latency,
		ErrorRatePct: raw.ErrorRate,
		Severity:     sev,
		Source:       "bus",
	}, nil
}

// MalformedCounter is incremented once per message that fails to decode.
// Callers wire it to a Prometheus counter in production; tests use a plain
// int.
type MalformedCounter interface {
	Inc()
}

// noopCounter discards increments when the caller doesn't care to track
// them, keeping Subscriber implementations from needing a nil check.
type noopCounter struct{}

func (noopCounter) Inc() {}

var _ MalformedCounter = noopCounter{}

func namedLogger(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		return nil
	}
	return log.Named(name)
}
