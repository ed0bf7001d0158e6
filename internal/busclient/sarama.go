// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

package busclient

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/pulseio/pulse/internal/metricswindow"
)

// SaramaSubscriber satisfies Subscriber against a real Kafka cluster via a
// consumer group, the production binding named in spec.md's external
// interfaces (§6) and SPEC_FULL.md §4.11.
type SaramaSubscriber struct {
	brokers []string
	topic   string
	group   string
	log     *zap.SugaredLogger
	bad     MalformedCounter
}

// NewSaramaSubscriber builds a SaramaSubscriber. A nil bad counter is
// replaced with a no-op so callers that don't care about the metric don't
// need to construct one.
func NewSaramaSubscriber(brokers []string, topic, group string, log *zap.SugaredLogger, bad MalformedCounter) *SaramaSubscriber {
	if bad == nil {
		bad = noopCounter{}
	}
	return &SaramaSubscriber{brokers: brokers, topic: topic, group: group, log: namedLogger(log, "busclient"), bad: bad}
}

// Run joins the consumer group and feeds decoded samples to out until ctx
// is cancelled. It restarts the underlying consume loop on every non-fatal
// error per sarama's documented consumer-group usage, matching the "loss
// of the bus subscription beyond recovery retries" exit condition from
// spec.md §7 (the caller decides when retries are exhausted).
func (s *SaramaSubscriber) Run(ctx context.Context, out chan<- metricswindow.Sample) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(s.brokers, s.group, cfg)
	if err != nil {
		return err
	}
	defer group.Close()

	handler := &groupHandler{out: out, log: s.log, bad: s.bad}

	go func() {
		for err := range group.Errors() {
			if s.log != nil {
				s.log.Warnw("busclient: consumer group error", "error", err)
			}
		}
	}()

	for {
		if err := group.Consume(ctx, []string{s.topic}, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.log != nil {
				s.log.Warnw("busclient: consume loop ended, retrying", "error", err)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	out chan<- metricswindow.Sample
	log *zap.SugaredLogger
	bad MalformedCounter
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim decodes every message on the claim. Malformed messages are
// marked consumed (acknowledged) and counted, never retried, per spec.md
// §6's "Malformed messages are acknowledged and counted."
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			sample, err := decode(msg.Value, time.Now())
			if err != nil {
				h.bad.Inc()
				if h.log != nil {
					h.log.Debugw("busclient: dropping malformed message", "error", err, "partition", msg.Partition, "offset", msg.Offset)
				}
				sess.MarkMessage(msg, "")
				continue
			}
			select {
			case h.out <- sample:
			case <-sess.Context().Done():
				return nil
			}
			sess.MarkMessage(msg, "")
		}
	}
}

var _ sarama.ConsumerGroupHandler = (*groupHandler)(nil)
