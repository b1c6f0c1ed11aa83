// Package events publishes finished sync run reports for operational tooling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"activity-sync/models"
)

// Publisher delivers run reports somewhere outside the process
type Publisher interface {
	PublishRun(ctx context.Context, report models.RunReport) error
	Close() error
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes run reports as JSON to one topic, keyed by source id
// so a source's reports stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a synchronous writer for topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishRun sends one report
func (p *KafkaPublisher) PublishRun(ctx context.Context, report models.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(report.SourceID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(report.Outcome)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish run report to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) PublishRun(context.Context, models.RunReport) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
