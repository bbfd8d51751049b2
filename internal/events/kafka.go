package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier forwards events to a Kafka topic keyed by aggregate id, so
// events for one order stay ordered within a partition.
type KafkaNotifier struct {
	Writer MessageWriter
	// Topics restricts forwarding; empty forwards everything.
	Topics []string
}

// NewKafkaWriter builds a writer for the given brokers and topic.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}
}

// Notify implements Notifier.
func (k KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	if k.Writer == nil || !k.forwards(ev.Topic) {
		return nil
	}
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(ev.Topic)},
		{Key: "event_id", Value: []byte(ev.ID)},
	}
	if ev.TenantID != "" {
		headers = append(headers, kafka.Header{Key: "tenant_id", Value: []byte(ev.TenantID)})
	}
	return k.Writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.AggregateID),
		Value:   ev.Payload,
		Headers: headers,
		Time:    ev.OccurredAt,
	})
}

func (k KafkaNotifier) forwards(topic string) bool {
	if len(k.Topics) == 0 {
		return true
	}
	for _, t := range k.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
