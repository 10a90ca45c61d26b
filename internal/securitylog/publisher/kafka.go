// Package publisher forwards persisted security events to Kafka for SIEM ingestion.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"adminconsole/internal/securitylog"
)

const (
	headerEventType = "event-type"
	headerActorKind = "actor-kind"
)

// Producer is the subset of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes one record per event, keyed by source IP so events from one
// caller stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafka connects a franz-go client to the given brokers.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return NewWithProducer(client, topic, logger), nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(producer Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends the event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event securitylog.Event) error {
	record, err := NewRecord(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce security event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.producer.Close()
	p.logger.Info("kafka security event publisher closed", "topic", p.topic)
}

// NewRecord encodes an event as a Kafka record.
func NewRecord(topic string, event securitylog.Event) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal security event: %w", err)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(event.IPAddress),
		Value:     value,
		Timestamp: event.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerActorKind, Value: []byte(event.ActorKind)},
		},
	}, nil
}
