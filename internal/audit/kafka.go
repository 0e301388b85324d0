// Package audit publishes audit entries to Kafka.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"dispatch/internal/domain"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaLog appends audit entries to a Kafka topic as JSON.
type KafkaLog struct {
	w     writer
	topic string
}

// NewKafkaLog creates a KafkaLog writing to topic on brokers.
func NewKafkaLog(brokers []string, topic string) *KafkaLog {
	return newKafkaLogWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, topic)
}

func newKafkaLogWithWriter(w writer, topic string) *KafkaLog {
	return &KafkaLog{w: w, topic: topic}
}

// Append publishes entry. Entries about the same agent share a partition.
func (l *KafkaLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode audit entry")
	}

	key := entry.Actors.AgentID
	if key == "" {
		key = string(entry.Category)
	}
	msg := kafka.Message{
		Topic: l.topic,
		Key:   []byte(key),
		Value: value,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "category", Value: []byte(entry.Category)},
			{Key: "level", Value: []byte(entry.Level)},
		},
	}
	if err := l.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "kafka publish audit entry")
	}
	return nil
}

// Close flushes pending messages.
func (l *KafkaLog) Close() error {
	if c, ok := l.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
