package handlers

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/microservices/order/service"
)

type Handler struct {
	OrderHandler *OrderHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		OrderHandler: NewOrderHandler(s.OrderService),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/orders", h.OrderHandler.AddOrder)
	e.PATCH("/orders/:id/items", h.OrderHandler.UpdateItems)
	e.PATCH("/orders/:id/status", h.OrderHandler.UpdateStatus)
	e.DELETE("/orders/:id", h.OrderHandler.DeleteOrder)
}
