package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes domain events to a Kafka topic for out-of-process
// consumers (notification service, realtime updates). It is registered on
// the Bus as a catch-all handler, so publish failures stay best-effort.
type KafkaPublisher struct {
	writer *kafkago.Writer
}

// NewKafkaPublisher creates a publisher writing to topic on the given
// brokers. Writes are bounded by the message timeout so a dead broker
// cannot stall event dispatch.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafkago.RequireOne,
		},
	}
}

// Handle serializes the event and writes it keyed by event name, so one
// consumer partition sees a given event type in order.
func (p *KafkaPublisher) Handle(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := kafkago.Message{
		Key:   []byte(e.EventName()),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(e.EventName())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write event")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
