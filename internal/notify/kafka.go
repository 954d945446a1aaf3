package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher implements Dispatcher using segmentio/kafka-go. Messages are
// keyed by target user so a consumer sees one staff member's notifications in order.
type KafkaDispatcher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaDispatcher creates a Kafka dispatcher that writes notifications to
// the given topic. Returns (nil, nil) when brokers or topic are unset so the
// caller can wire a disabled dispatcher. Call Close when shutting down.
func NewKafkaDispatcher(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaDispatcher{writer: writer, topic: topic}, nil
}

// Notify serializes the message as JSON and writes it to the Kafka topic.
// Uses the request context with a short timeout so slow Kafka does not block callers indefinitely.
func (d *KafkaDispatcher) Notify(ctx context.Context, msg *Message) error {
	if d == nil || d.writer == nil || msg == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(msg.TargetUserID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (d *KafkaDispatcher) Close() error {
	if d == nil || d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
