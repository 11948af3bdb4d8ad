package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"good-food/internal/common/logger"
	"good-food/internal/domain"
	"good-food/internal/events"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

const defaultActor = "supplier"

// Transitioner is the part of the command engine the worker drives.
type Transitioner interface {
	Transition(ctx context.Context, id string, to domain.CommandStatus, ifVersion *int, actor string) (domain.Command, error)
}

// ChannelOpener hands out consumer channels; *rabbitmq.Client satisfies it.
type ChannelOpener interface {
	OpenChannel() (*amqp.Channel, error)
}

type SupplierServiceInterface interface {
	Run(ctx context.Context) error
}

type SupplierService struct {
	conn     ChannelOpener
	commands Transitioner
	lg       *logger.Logger
	tracer   trace.Tracer

	Queue    string
	Prefetch int
	Tag      string
}

func NewSupplierService(conn ChannelOpener, commands Transitioner, lg *logger.Logger, queue string, prefetch int) *SupplierService {
	if prefetch <= 0 {
		prefetch = 1
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &SupplierService{
		conn:     conn,
		commands: commands,
		lg:       lg,
		tracer:   otel.Tracer("good-food/supplier"),
		Queue:    queue,
		Prefetch: prefetch,
		Tag:      "supplier-worker",
	}
}

// declare sets up the delivery queue with a dead-letter queue next to it.
func (s *SupplierService) declare(ch *amqp.Channel) error {
	dlx := s.Queue + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(s.Queue+".dlq", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s.dlq: %w", s.Queue, err)
	}
	if err := ch.QueueBind(s.Queue+".dlq", "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind %s.dlq: %w", s.Queue, err)
	}
	if _, err := ch.QueueDeclare(s.Queue, true, false, false, false, amqp.Table{"x-dead-letter-exchange": dlx}); err != nil {
		return fmt.Errorf("declare %s: %w", s.Queue, err)
	}
	return nil
}

func (s *SupplierService) Run(ctx context.Context) error {
	if strings.TrimSpace(s.Queue) == "" {
		return errors.New("supplier queue name is empty")
	}
	ch, err := s.conn.OpenChannel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := s.declare(ch); err != nil {
		return err
	}
	if err := ch.Qos(s.Prefetch, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(s.Queue, s.Tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))

	s.lg.Info("worker_started", map[string]any{"queue": s.Queue, "prefetch": s.Prefetch})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			err := s.processOne(ctx, d)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrDLQ):
				_ = d.Nack(false, false)
			default:
				_ = d.Nack(false, true)
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.lg.Info("graceful_shutdown", map[string]any{"queue": s.Queue})
		_ = ch.Cancel(s.Tag, false)
		<-done
		return nil
	case amqpErr := <-closeCh:
		<-done
		if amqpErr != nil {
			return fmt.Errorf("amqp channel closed: %s", amqpErr.Reason)
		}
		return errors.New("amqp channel closed")
	}
}

// processOne applies one delivery and says what to do with it.
func (s *SupplierService) processOne(ctx context.Context, d amqp.Delivery) error {
	var msg domain.SupplierDeliveryMsg
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		s.lg.Warn("delivery_malformed", map[string]any{"message_id": d.MessageId, "reason": err.Error()})
		return ErrDLQ
	}
	id, err := domain.ParseID("command_id", msg.CommandID)
	if err != nil {
		s.lg.Warn("delivery_malformed", map[string]any{"message_id": d.MessageId, "reason": err.Error()})
		return ErrDLQ
	}
	to := domain.CommandStatus(msg.Status)
	if to != domain.CommandInProgress && to != domain.CommandDelivered {
		s.lg.Warn("delivery_malformed", map[string]any{"command_id": id, "status": msg.Status})
		return ErrDLQ
	}
	actor := msg.ChangedBy
	if actor == "" {
		actor = defaultActor
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, events.AMQPHeaders(d.Headers))
	ctx, span := s.tracer.Start(ctx, "supplier.delivery", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("command.id", id), attribute.String("command.to", string(to)))

	_, err = s.commands.Transition(ctx, id, to, nil, actor)
	verdict := classify(err, to)
	fields := map[string]any{"command_id": id, "status": to, "redelivered": d.Redelivered}
	switch {
	case err == nil:
		s.lg.Info("delivery_applied", fields)
	case verdict == nil:
		s.lg.Debug("delivery_already_applied", fields)
	case errors.Is(verdict, ErrDLQ):
		s.lg.Error("delivery_rejected", err, fields)
	default:
		s.lg.Warn("delivery_retry", map[string]any{"command_id": id, "status": to, "reason": err.Error()})
	}
	return verdict
}

func classify(err error, to domain.CommandStatus) error {
	if err == nil {
		return nil
	}
	var (
		it  *domain.InvalidTransitionError
		nf  *domain.NotFoundError
		ve  *domain.ValidationError
		cnm *domain.CommandNotMutableError
	)
	switch {
	case errors.As(err, &it):
		if reached(domain.CommandStatus(it.From), to) {
			return nil
		}
		return ErrDLQ
	case errors.As(err, &nf), errors.As(err, &ve), errors.As(err, &cnm):
		return ErrDLQ
	default:
		// lock timeouts, version conflicts and infrastructure errors
		return ErrRequeue
	}
}

// reached reports whether a command at status cur already covers a
// redelivered message asking for to.
func reached(cur, to domain.CommandStatus) bool {
	if cur == to {
		return true
	}
	return to == domain.CommandInProgress && cur == domain.CommandDelivered
}
