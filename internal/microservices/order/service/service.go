package service

import (
	"good-food/internal/common/logger"
	"good-food/internal/events"
	catalog "good-food/internal/microservices/catalog/service"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(store repository.Store, ledger stock.LedgerInterface, publisher events.Publisher, lg *logger.Logger, opts ...Option) *Service {
	return &Service{
		OrderService: NewOrderService(store, catalog.NewRecipeResolver(), ledger, publisher, lg, opts...),
	}
}
