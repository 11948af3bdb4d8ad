package command

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/common/logger"
	"good-food/internal/events"
	"good-food/internal/microservices/command/handlers"
	"good-food/internal/microservices/command/service"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

func Mount(e *echo.Echo, store repository.Store, ledger stock.LedgerInterface, publisher events.Publisher, lg *logger.Logger, opts ...service.Option) {
	svc := service.New(store, ledger, publisher, lg, opts...)
	handlers.New(svc).Register(e)
}
