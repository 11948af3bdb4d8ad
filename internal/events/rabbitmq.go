package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"good-food/internal/domain"
)

type amqpPublisher interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// RabbitPublisher sends every event to a topic exchange with the event
// type as routing key.
type RabbitPublisher struct {
	client   amqpPublisher
	exchange string
	timeout  time.Duration
}

func NewRabbitPublisher(client amqpPublisher, exchange string) *RabbitPublisher {
	return &RabbitPublisher{client: client, exchange: exchange, timeout: 5 * time.Second}
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	headers := AMQPHeaders{"x-source": "good-food"}
	otel.GetTextMapPropagator().Inject(ctx, headers)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Publish(ctx, p.exchange, ev.Type, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     ev.ID,
		CorrelationId: ev.AggregateID,
		Type:          ev.Type,
		Timestamp:     ev.OccurredAt,
		Headers:       amqp.Table(headers),
		Body:          body,
	})
}

func (p *RabbitPublisher) Close() error { return nil }
