package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/microservices/stock/service"
)

type StockHandler struct {
	ledger service.LedgerInterface
}

func NewStockHandler(ledger service.LedgerInterface) *StockHandler {
	return &StockHandler{ledger: ledger}
}

func (h *StockHandler) Register(e *echo.Echo) {
	e.POST("/franchises/:id/stock", h.UpsertStock)
	e.PUT("/franchises/:id/stock/:ingredientId", h.SetQuantity)
}

// UpsertStock creates or overwrites a stock row --> POST /franchises/:id/stock
func (h *StockHandler) UpsertStock(c echo.Context) error {
	franchiseID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpsertStockRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredient_id", req.IngredientID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if req.Quantity == nil {
		return httpx.Fail(c, &domain.ValidationError{Field: "quantity", Reason: "is required"})
	}
	st, err := h.ledger.UpsertInitial(c.Request().Context(), franchiseID, ingredientID, *req.Quantity)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// SetQuantity overwrites an existing row --> PUT /franchises/:id/stock/:ingredientId
func (h *StockHandler) SetQuantity(c echo.Context) error {
	franchiseID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateStockQuantityRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	if req.Quantity == nil {
		return httpx.Fail(c, &domain.ValidationError{Field: "quantity", Reason: "is required"})
	}
	st, err := h.ledger.SetQuantity(c.Request().Context(), franchiseID, ingredientID, *req.Quantity)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
