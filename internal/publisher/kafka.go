package publisher

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/pkg/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes alert events to a topic keyed by transformer, so one
// transformer's alerts stay on one partition
type Kafka struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a producer for the configured topic. Connections are made lazily on first write.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required when enabled")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.GetTopic(),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Kafka{writer: w, topic: cfg.GetTopic()}, nil
}

// Notify writes the event as one message
func (k *Kafka) Notify(ctx context.Context, event models.AlertEvent) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.TransformerID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to kafka topic %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
