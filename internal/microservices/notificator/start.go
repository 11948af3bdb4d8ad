package notificator

import (
	"context"

	"good-food/internal/common/logger"
	"good-food/internal/connections/rabbitmq"
	"good-food/internal/microservices/notificator/service"
)

func StartRabbit(ctx context.Context, rmqClient *rabbitmq.Client, lg *logger.Logger, exchange, queue string) error {
	svc := service.New(rmqClient, lg, exchange, queue)
	return svc.NotificatorService.ConsumeRabbit(ctx)
}

func StartKafka(ctx context.Context, reader service.KafkaReader, lg *logger.Logger) error {
	svc := service.New(nil, lg, "", "")
	return svc.NotificatorService.ConsumeKafka(ctx, reader)
}
