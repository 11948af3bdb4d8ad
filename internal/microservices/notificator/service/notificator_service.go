package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"good-food/internal/common/logger"
	"good-food/internal/domain"
)

type NotificatorServiceInterface interface {
	Handle(body []byte) error
	ConsumeRabbit(ctx context.Context) error
	ConsumeKafka(ctx context.Context, reader KafkaReader) error
}

// ChannelOpener hands out consumer channels; *rabbitmq.Client satisfies it.
type ChannelOpener interface {
	OpenChannel() (*amqp.Channel, error)
}

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type envelope struct {
	domain.Event
	Payload json.RawMessage `json:"payload"`
}

type NotificatorService struct {
	conn     ChannelOpener
	lg       *logger.Logger
	Exchange string
	Queue    string
}

func NewNotificatorService(conn ChannelOpener, lg *logger.Logger, exchange, queue string) *NotificatorService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &NotificatorService{conn: conn, lg: lg, Exchange: exchange, Queue: queue}
}

// Handle logs one published event. Status changes are flattened so the log
// line reads as the notification a customer or manager would get.
func (ns *NotificatorService) Handle(body []byte) error {
	var ev envelope
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return errors.New("decode event: missing type")
	}
	fields := map[string]any{"event_id": ev.ID, "event": ev.Type, "aggregate_id": ev.AggregateID, "occurred_at": ev.OccurredAt}

	switch ev.Type {
	case domain.EventOrderStatusChanged, domain.EventCommandStatusChanged:
		var msg domain.StatusChangedMsg
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		fields["old_status"], fields["new_status"], fields["changed_by"] = msg.OldStatus, msg.NewStatus, msg.ChangedBy
		fields["franchise_id"] = msg.FranchiseID
	case domain.EventOrderCreated:
		var msg domain.OrderCreatedMsg
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		fields["franchise_id"], fields["total"], fields["lines"] = msg.ShopID, msg.Total, len(msg.Items)
	}
	ns.lg.Info("notification_received", fields)
	return nil
}

// ConsumeRabbit binds a durable queue to every routing key of the events
// exchange and logs what arrives.
func (ns *NotificatorService) ConsumeRabbit(ctx context.Context) error {
	ch, err := ns.conn.OpenChannel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ns.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ns.Exchange, err)
	}
	if _, err := ch.QueueDeclare(ns.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ns.Queue, err)
	}
	if err := ch.QueueBind(ns.Queue, "#", ns.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", ns.Queue, err)
	}
	msgs, err := ch.Consume(ns.Queue, "notificator", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("notification consumer closed")
			}
			if err := ns.Handle(d.Body); err != nil {
				ns.lg.Error("notification_malformed", err, map[string]any{"message_id": d.MessageId})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// ConsumeKafka reads the events topic with a consumer group, committing
// each message once it has been logged.
func (ns *NotificatorService) ConsumeKafka(ctx context.Context, reader KafkaReader) error {
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}
		if err := ns.Handle(m.Value); err != nil {
			ns.lg.Error("notification_malformed", err, map[string]any{"partition": m.Partition, "offset": m.Offset})
		}
		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
}
