package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
)

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes order events to a Kafka topic, keyed by user so a
// single user's orders stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishOrderCreated emits one order.created message.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, ev OrderCreated) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str("order.created") })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(ev.UserID) })
		e.Field("cartId", func(e *jx.Encoder) { e.Str(ev.CartID) })
		e.Field("totalPrice", func(e *jx.Encoder) { e.Str(ev.TotalPrice.StringFixed(2)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(ev.CreatedAt.UTC().Format(time.RFC3339)) })
	})

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: e.Bytes(),
	})
	if err != nil {
		return errors.Wrap(err, "write order.created")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
