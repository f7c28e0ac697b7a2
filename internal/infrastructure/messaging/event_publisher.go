package messaging

import (
	"context"
	"time"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/kafka"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
)

// eventSource identifies this service in published envelopes
const eventSource = "delivery-rate-service"

// KafkaEventPublisher publishes domain events to the delivery events
// topic. Implements application.EventPublisher. Events are advisory;
// the service state is authoritative in MongoDB, so publishing is
// at-most-once and a failure is only logged by the caller.
type KafkaEventPublisher struct {
	producer *kafka.Producer
	topic    string
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewKafkaEventPublisher creates a publisher on the delivery events topic.
// metrics may be nil.
func NewKafkaEventPublisher(producer *kafka.Producer, m *metrics.Metrics, logger *logging.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    kafka.Topics.DeliveryEvents,
		metrics:  m,
		logger:   logger,
	}
}

// Publish wraps a domain event in an envelope keyed by the line ID and
// writes it to Kafka.
func (p *KafkaEventPublisher) Publish(ctx context.Context, subject string, event domain.DomainEvent) error {
	envelope := kafka.NewEnvelope(event.EventType(), eventSource, subject, event)

	start := time.Now()
	err := p.producer.PublishEvent(ctx, p.topic, envelope)
	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(p.topic, event.EventType(), err == nil, time.Since(start))
	}
	if err != nil {
		return err
	}

	p.logger.Debug("Published domain event",
		"topic", p.topic,
		"eventType", event.EventType(),
		"subject", subject,
	)
	return nil
}

// Close closes the underlying producer
func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
