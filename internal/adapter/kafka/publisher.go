package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/regenagro/enviro-data-batch/internal/config"
	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// Publisher produces aggregate refresh events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured aggregate topic.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// PublishAggregates serializes and publishes refresh events in a single
// WriteMessages call.
func (p *Publisher) PublishAggregates(ctx context.Context, events []domain.AggregateEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish aggregate events: %w", err)
	}
	p.metrics.EventsPublished.Add(float64(len(events)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an AggregateEvent into a Kafka message keyed by
// user so per-user events stay ordered within a partition.
func serializeToMessage(event domain.AggregateEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize aggregate event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "processed_at", Value: []byte(event.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
