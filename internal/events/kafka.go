package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"good-food/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by aggregate id so the events of one order
// or command stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	headers := []kafka.Header{{Key: "event-type", Value: []byte(ev.Type)}}
	otel.GetTextMapPropagator().Inject(ctx, kafkaHeaders{headers: &headers})

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.AggregateID),
		Value:   body,
		Headers: headers,
		Time:    ev.OccurredAt,
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
