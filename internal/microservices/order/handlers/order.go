package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/microservices/order/service"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

// AddOrder creates a draft order --> POST /orders
func (oh *OrderHandler) AddOrder(c echo.Context) error {
	var req domain.CreateOrderRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	shopID, err := domain.ParseID("shopId", req.ShopID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	items, err := domain.ConvertOrderItems(req.Items)
	if err != nil {
		return httpx.Fail(c, err)
	}

	o, err := oh.service.CreateOrder(c.Request().Context(), service.NewOrder{
		UserID:         httpx.UserID(c),
		ShopID:         shopID,
		Items:          items,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	httpx.SetVersion(c, o.Version)
	return c.JSON(http.StatusCreated, domain.NewOrderResponse(o))
}

// UpdateItems replaces a draft order's items --> PATCH /orders/:id/items
func (oh *OrderHandler) UpdateItems(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateOrderItemsRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	items, err := domain.ConvertOrderItems(req.Items)
	if err != nil {
		return httpx.Fail(c, err)
	}
	o, err := oh.service.UpdateItems(c.Request().Context(), id, items, version)
	if err != nil {
		return httpx.Fail(c, err)
	}
	httpx.SetVersion(c, o.Version)
	return c.JSON(http.StatusOK, domain.NewOrderResponse(o))
}

// UpdateStatus moves an order to another status --> PATCH /orders/:id/status
func (oh *OrderHandler) UpdateStatus(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateStatusRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	o, err := oh.service.Transition(c.Request().Context(), id, domain.OrderStatus(req.Status), version, httpx.Actor(c))
	if err != nil {
		return httpx.Fail(c, err)
	}
	httpx.SetVersion(c, o.Version)
	return c.JSON(http.StatusOK, domain.NewOrderResponse(o))
}

// DeleteOrder removes a draft order --> DELETE /orders/:id
func (oh *OrderHandler) DeleteOrder(c echo.Context) error {
	id, version, err := target(c)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := oh.service.DeleteOrder(c.Request().Context(), id, version); err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id, "message": "order deleted"})
}

func target(c echo.Context) (string, *int, error) {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return "", nil, err
	}
	version, err := httpx.IfMatch(c)
	if err != nil {
		return "", nil, err
	}
	return id, version, nil
}
