package service

import "good-food/internal/common/logger"

type Service struct {
	NotificatorService NotificatorServiceInterface
}

func New(conn ChannelOpener, lg *logger.Logger, exchange, queue string) *Service {
	return &Service{NotificatorService: NewNotificatorService(conn, lg, exchange, queue)}
}
