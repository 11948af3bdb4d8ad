package service

import (
	"good-food/internal/common/logger"
	"good-food/internal/events"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

type Service struct {
	CommandService CommandServiceInterface
}

func New(store repository.Store, ledger stock.LedgerInterface, publisher events.Publisher, lg *logger.Logger, opts ...Option) *Service {
	return &Service{
		CommandService: NewCommandService(store, ledger, publisher, lg, opts...),
	}
}
