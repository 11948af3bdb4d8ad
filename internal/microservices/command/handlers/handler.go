package handlers

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/microservices/command/service"
)

type Handler struct {
	CommandHandler *CommandHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		CommandHandler: NewCommandHandler(s.CommandService),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/commands", h.CommandHandler.AddCommand)
	e.PUT("/commands/:id", h.CommandHandler.UpdateCommand)
	e.POST("/commands/:id/items", h.CommandHandler.AddItem)
	e.PATCH("/commands/:id/items/:ingredientId", h.CommandHandler.UpdateItem)
	e.DELETE("/commands/:id/items/:ingredientId", h.CommandHandler.RemoveItem)
}
