package stock

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/microservices/stock/handlers"
	"good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

func Mount(e *echo.Echo, store repository.Store) service.LedgerInterface {
	ledger := service.NewLedger(store)
	handlers.NewStockHandler(ledger).Register(e)
	return ledger
}
