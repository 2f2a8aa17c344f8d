package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands click events to an async Kafka writer. Delivery is
// best effort; failures surface only through logs and metrics.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				metrics.ClickEvents.WithLabelValues(metrics.OutcomeError).Add(float64(len(messages)))
				logger.Warn("kafka click events not delivered", zap.Error(err), zap.Int("count", len(messages)))
				return
			}
			metrics.ClickEvents.WithLabelValues(metrics.OutcomeOK).Add(float64(len(messages)))
		},
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) PublishClick(ctx context.Context, slug string, click links.Click) error {
	event := NewClickRecorded(slug, click)
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode click event: %w", err)
	}

	ctx, span := otel.Tracer("click-publisher").Start(ctx,
		"kafka.publish.click_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.message.id", event.EventID),
			attribute.String("messaging.kafka.message_key", slug),
		),
	)
	defer span.End()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(slug),
		Value:   value,
		Time:    click.Timestamp.UTC(),
		Headers: InjectHeaders(ctx),
	})
	if err != nil {
		span.RecordError(err)
		metrics.ClickEvents.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards click events.
type NopPublisher struct{}

func (NopPublisher) PublishClick(context.Context, string, links.Click) error {
	metrics.ClickEvents.WithLabelValues(metrics.OutcomeSkipped).Inc()
	return nil
}

func (NopPublisher) Close() error { return nil }
