package supplier

import (
	"context"

	"good-food/internal/common/logger"
	"good-food/internal/connections/rabbitmq"
	"good-food/internal/microservices/supplier/service"
)

// Run consumes supplier delivery messages until ctx is done.
func Run(ctx context.Context, rmqClient *rabbitmq.Client, commands service.Transitioner, lg *logger.Logger, queue string, prefetch int) error {
	svc := service.New(rmqClient, commands, lg, queue, prefetch)
	return svc.SupplierService.Run(ctx)
}
