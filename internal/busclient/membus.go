// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package busclient

import (
	"context"
	"time"

	"github.com/pulseio/pulse/internal/metricswindow"
)

// MemBus is an in-process Subscriber backed by a Go channel of raw
// message bodies, used by this package's tests and by local development
// (`pulse start --bus memory`) in place of a real Kafka cluster.
type MemBus struct {
	in  chan []byte
	bad MalformedCounter
}

// NewMemBus builds a MemBus with the given input buffer size.
func NewMemBus(buffer int, bad MalformedCounter) *MemBus {
	if bad == nil {
		bad = noopCounter{}
	}
	return &MemBus{in: make(chan []byte, buffer), bad: bad}
}

// Publish enqueues one raw message body, mirroring what a Kafka producer
// would put on the wire. It blocks if the buffer is full.
func (b *MemBus) Publish(body []byte) {
	b.in <- body
}

// Run decodes every published body and forwards it to out until ctx is
// cancelled. Malformed bodies are counted and dropped, matching the
// acknowledge-and-count behavior of SaramaSubscriber.
func (b *MemBus) Run(ctx context.Context, out chan<- metricswindow.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case body := <-b.in:
			sample, err := decode(body, time.Now())
			if err != nil {
				b.bad.Inc()
				continue
			}
			select {
			case out <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

var _ Subscriber = (*MemBus)(nil)
