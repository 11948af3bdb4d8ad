package handler

import (
	"github.com/labstack/echo/v4"

	"good-food/internal/domain"
)

// Router registers the read-only endpoints.
func Router(e *echo.Echo, h *Handler) {
	e.GET("/orders/:id", h.TrackerHandler.GetOrder)
	e.GET("/orders/:id/timeline", h.TrackerHandler.Timeline(domain.EntityOrder))
	e.GET("/commands/:id", h.TrackerHandler.GetCommand)
	e.GET("/commands/:id/timeline", h.TrackerHandler.Timeline(domain.EntityCommand))
	e.GET("/franchises/:id/stock", h.TrackerHandler.ListStock)
	e.GET("/franchises/:id/stock/:ingredientId", h.TrackerHandler.GetStock)
}
