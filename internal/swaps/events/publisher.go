package events

import (
	"context"
	"fmt"

	"slotswapper/pkg/kafka"
	kafka_config "slotswapper/pkg/kafka/config"
	kafka_middleware "slotswapper/pkg/kafka/middleware"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/model"
)

const (
	SchemaVersion = "1"
	Source        = "swaps"
)

// Publisher announces committed negotiation transitions.
type Publisher interface {
	Publish(ctx context.Context, event *model.SwapEvent) error
	Close() error
}

type eventWriter interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	producer eventWriter
	metrics  *kafka_middleware.Metrics
	log      *logger.Logger
}

func NewKafkaPublisher(cfg *kafka_config.Config, topic, dlqTopic string, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(cfg, topic, dlqTopic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap event producer: %w", err)
	}

	metrics := kafka_middleware.NewMetrics()
	producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	producer.Use(metrics.ProducerMiddleware())

	return &KafkaPublisher{producer: producer, metrics: metrics, log: log}, nil
}

// Publish keys the message by request id so every event of one negotiation
// lands on the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, event *model.SwapEvent) error {
	msg, err := NewEventMessage(event)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	if p.metrics != nil {
		p.log.Info("Swap event publisher closing", p.metrics.Snapshot().LogAttrs()...)
	}
	return p.producer.Close()
}

func NewEventMessage(event *model.SwapEvent) (kafka.Message, error) {
	msg, err := kafka.NewMessage().
		WithKey(event.RequestID).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithCorrelationID(event.RequestID).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		Build()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode swap event: %w", err)
	}
	return msg, nil
}

// NoopPublisher is used when KAFKA_ENABLED is false.
type NoopPublisher struct {
	log *logger.Logger
}

func NewNoopPublisher(log *logger.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(ctx context.Context, event *model.SwapEvent) error {
	p.log.Debug("Swap event not published, kafka disabled", "type", event.Type, "request_id", event.RequestID)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
