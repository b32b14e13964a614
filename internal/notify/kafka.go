package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by Kafka.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications to a single topic keyed by channel.
type Kafka struct {
	writer messageWriter
}

var _ Notifier = (*Kafka)(nil)

// NewKafka creates a writer for topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Notify implements Notifier.
func (k *Kafka) Notify(ctx context.Context, channel, message string) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	data, err := json.Marshal(Message{Channel: channel, Message: message})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(channel),
		Value: data,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return deliveryError(ctx, "kafka", channel, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
