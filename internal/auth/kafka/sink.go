// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package kafka publishes security events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"github.com/cinebook/authcore/internal/auth"
)

// DefaultTopic receives security events when no topic is configured.
const DefaultTopic = "authcore.security-events"

// MessageWriter is the part of *kafka.Writer the Sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink implements auth.SecurityEventSink by publishing JSON SecurityEvents.
// Messages are keyed by account id when known, else by email, so events
// for one principal stay ordered within a partition.
type Sink struct {
	writer MessageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates an asynchronous writer for topic. Delivery failures
// are reported through logger.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("best-effort security event delivery failed",
					"operation", "publish_security_event",
					"messages", len(messages),
					"error", err.Error())
			}
		},
	}
}

// NewSink creates a Sink on writer.
func NewSink(writer MessageWriter, logger *slog.Logger) (*Sink, error) {
	if writer == nil {
		return nil, oops.Code(auth.CodeInvalidConfig).Errorf("kafka writer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, logger: logger, now: time.Now}, nil
}

// RecordLoginFailure implements auth.SecurityEventSink.
func (s *Sink) RecordLoginFailure(ctx context.Context, email, reason string) {
	s.publish(ctx, email, auth.LoginFailureEvent(email, reason, s.now().UTC()))
}

// RecordLoginSuccess implements auth.SecurityEventSink.
func (s *Sink) RecordLoginSuccess(ctx context.Context, accountID int64, email string, role auth.Role) {
	s.publish(ctx, strconv.FormatInt(accountID, 10), auth.LoginSuccessEvent(accountID, email, role, s.now().UTC()))
}

// RecordEvent implements auth.SecurityEventSink.
func (s *Sink) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	key := attrs["account_id"]
	if key == "" {
		key = attrs["email"]
	}
	s.publish(ctx, key, auth.SecurityEvent{Name: name, OccurredAt: s.now().UTC(), Attributes: attrs})
}

// Close flushes pending messages.
func (s *Sink) Close() error {
	if err := s.writer.Close(); err != nil {
		return oops.Code("KAFKA_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func (s *Sink) publish(ctx context.Context, key string, event auth.SecurityEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.warn(ctx, event.Name, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Name)},
		},
	}
	// The flow's context may already be cancelled when the event is recorded.
	if err := s.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		s.warn(ctx, event.Name, err)
	}
}

func (s *Sink) warn(ctx context.Context, event string, err error) {
	s.logger.WarnContext(ctx, "best-effort security event publish failed",
		"operation", "publish_security_event",
		"event", event,
		"error", err.Error())
}

var _ auth.SecurityEventSink = (*Sink)(nil)
