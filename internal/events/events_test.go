package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"good-food/internal/domain"
)

type fakeAMQP struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakeAMQP) Publish(_ context.Context, exchange, key string, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

type fakeWriter struct{ msgs []kafka.Message }

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func sampleEvent() domain.Event {
	o := domain.Order{
		ID: "o1", ShopID: "f1", UserID: "u1", Total: 1250,
		Items: []domain.OrderItem{{ItemID: "d1", Quantity: 2, UnitPrice: 625}},
	}
	return New(domain.EventOrderCreated, o.ID, domain.NewOrderCreatedMsg(o), time.Unix(1700000000, 0).UTC())
}

func TestRabbitPublisherRoutesByType(t *testing.T) {
	f := &fakeAMQP{}
	ev := sampleEvent()
	if err := NewRabbitPublisher(f, "good_food_events").Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if f.exchange != "good_food_events" || f.key != domain.EventOrderCreated {
		t.Errorf("exchange/key = %s/%s", f.exchange, f.key)
	}
	if f.msg.DeliveryMode != amqp.Persistent || f.msg.MessageId != ev.ID || f.msg.CorrelationId != "o1" {
		t.Errorf("publishing = %+v", f.msg)
	}

	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			OrderID string `json:"orderId"`
			Total   string `json:"total"`
			Items   []struct {
				UnitPrice string `json:"unitPrice"`
			} `json:"items"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(f.msg.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != domain.EventOrderCreated || decoded.Payload.Total != "12.50" || decoded.Payload.Items[0].UnitPrice != "6.25" {
		t.Errorf("body = %s", f.msg.Body)
	}
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	if err := NewKafkaPublisher(w).Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "o1" {
		t.Errorf("key = %s", m.Key)
	}
	if got := (kafkaHeaders{headers: &m.Headers}).Get("event-type"); got != domain.EventOrderCreated {
		t.Errorf("event-type header = %q", got)
	}
}
