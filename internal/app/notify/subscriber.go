package notify

import (
	"context"

	"good-food/internal/app"
	"good-food/internal/connections/kafka"
	"good-food/internal/microservices/notificator"
)

const kafkaGroup = "good-food-notificator"

// Run logs every published event from whichever broker carries them.
func Run(ctx context.Context, d *app.Deps) error {
	if d.Cfg.Events.Driver == "kafka" {
		reader := kafka.NewReader(d.Cfg.Kafka.Brokers, d.Cfg.Kafka.Topic, kafkaGroup)
		defer reader.Close()
		return notificator.StartKafka(ctx, reader, d.Log)
	}
	rc := d.Cfg.RabbitMQ
	return notificator.StartRabbit(ctx, d.Rabbit, d.Log, rc.EventsExchange, rc.NotificationQueue)
}

// NeedsRabbit reports whether the subscriber reads from RabbitMQ.
func NeedsRabbit(d string) bool { return d != "kafka" }
