package supplier

import (
	"context"

	"good-food/internal/app"
	commandsvc "good-food/internal/microservices/command/service"
	stocksvc "good-food/internal/microservices/stock/service"
	"good-food/internal/microservices/supplier"
)

// Run drives commands from the supplier delivery queue.
func Run(ctx context.Context, d *app.Deps) error {
	engine := commandsvc.NewCommandService(d.Store, stocksvc.NewLedger(d.Store), d.Publisher, d.Log,
		commandsvc.WithRetry(d.RetryPolicy()))
	rc := d.Cfg.RabbitMQ
	return supplier.Run(ctx, d.Rabbit, engine, d.Log, rc.SupplierQueue, rc.Prefetch)
}
