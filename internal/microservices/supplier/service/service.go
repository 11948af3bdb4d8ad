package service

import "good-food/internal/common/logger"

type Service struct {
	SupplierService SupplierServiceInterface
}

func New(conn ChannelOpener, commands Transitioner, lg *logger.Logger, queue string, prefetch int) *Service {
	return &Service{SupplierService: NewSupplierService(conn, commands, lg, queue, prefetch)}
}
