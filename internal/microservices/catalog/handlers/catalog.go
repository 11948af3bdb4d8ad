package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"good-food/internal/common/httpx"
	"good-food/internal/domain"
	"good-food/internal/microservices/catalog/service"
)

type CatalogHandler struct {
	service service.CatalogServiceInterface
}

func NewCatalogHandler(s service.CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: s}
}

func (h *CatalogHandler) Register(e *echo.Echo) {
	e.POST("/franchises", h.CreateFranchise)
	e.GET("/franchises/:id", h.GetFranchise)

	e.POST("/ingredients", h.CreateIngredient)
	e.GET("/ingredients/:id", h.GetIngredient)
	e.PUT("/ingredients/:id", h.UpdateIngredient)

	e.POST("/dish", h.CreateDish)
	e.GET("/dish/:id", h.GetDish)
	e.PUT("/dish/:id", h.UpdateDish)
	e.DELETE("/dish/:id", h.DeleteDish)

	e.GET("/dish/:id/ingredients", h.Recipe)
	e.POST("/dish/:id/ingredients", h.AddRecipeLine)
	e.PUT("/dish/:id/ingredients/:ingredientId", h.SetRecipeLine)
	e.DELETE("/dish/:id/ingredients/:ingredientId", h.RemoveRecipeLine)
}

// CreateFranchise --> POST /franchises
func (h *CatalogHandler) CreateFranchise(c echo.Context) error {
	var req domain.CreateFranchiseRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	f, err := h.service.CreateFranchise(c.Request().Context(), req.Name)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusCreated, domain.FranchiseResponse{ID: f.ID, Name: f.Name})
}

// GetFranchise --> GET /franchises/:id
func (h *CatalogHandler) GetFranchise(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	f, err := h.service.GetFranchise(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.FranchiseResponse{ID: f.ID, Name: f.Name})
}

// CreateIngredient --> POST /ingredients
func (h *CatalogHandler) CreateIngredient(c echo.Context) error {
	var req domain.CreateIngredientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	price, err := domain.PriceFromDecimal("unit_price", req.UnitPrice)
	if err != nil {
		return httpx.Fail(c, err)
	}
	ing, err := h.service.CreateIngredient(c.Request().Context(), domain.Ingredient{
		Name: req.Name, UnitPrice: price, SupplierID: req.SupplierID,
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusCreated, domain.NewIngredientResponse(ing))
}

// GetIngredient --> GET /ingredients/:id
func (h *CatalogHandler) GetIngredient(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	ing, err := h.service.GetIngredient(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewIngredientResponse(ing))
}

// UpdateIngredient changes name, unit price or supplier --> PUT /ingredients/:id
func (h *CatalogHandler) UpdateIngredient(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateIngredientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	upd := service.IngredientUpdate{Name: req.Name, SupplierID: req.SupplierID}
	if req.UnitPrice != nil {
		price, err := domain.PriceFromDecimal("unit_price", *req.UnitPrice)
		if err != nil {
			return httpx.Fail(c, err)
		}
		upd.UnitPrice = &price
	}
	ing, err := h.service.UpdateIngredient(c.Request().Context(), id, upd)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewIngredientResponse(ing))
}

// CreateDish adds a dish to a franchise catalog --> POST /dish
func (h *CatalogHandler) CreateDish(c echo.Context) error {
	var req domain.CreateDishRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	franchiseID, err := domain.ParseID("franchise_id", req.FranchiseID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	price, err := domain.PriceFromDecimal("base_price", req.BasePrice)
	if err != nil {
		return httpx.Fail(c, err)
	}
	available := true
	if req.Availability != nil {
		available = *req.Availability
	}
	d, err := h.service.CreateDish(c.Request().Context(), domain.Dish{
		FranchiseID: franchiseID, Name: req.Name, BasePrice: price, Available: available, MenuID: req.MenuID,
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusCreated, domain.NewDishResponse(d))
}

// GetDish --> GET /dish/:id
func (h *CatalogHandler) GetDish(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	d, err := h.service.GetDish(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewDishResponse(d))
}

// UpdateDish --> PUT /dish/:id
func (h *CatalogHandler) UpdateDish(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.UpdateDishRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	upd := service.DishUpdate{Name: req.Name, Available: req.Availability, MenuID: req.MenuID}
	if req.BasePrice != nil {
		price, err := domain.PriceFromDecimal("base_price", *req.BasePrice)
		if err != nil {
			return httpx.Fail(c, err)
		}
		upd.BasePrice = &price
	}
	d, err := h.service.UpdateDish(c.Request().Context(), id, upd)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewDishResponse(d))
}

// DeleteDish removes the dish and its recipe --> DELETE /dish/:id
func (h *CatalogHandler) DeleteDish(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := h.service.DeleteDish(c.Request().Context(), id); err != nil {
		return httpx.Fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Recipe --> GET /dish/:id/ingredients
func (h *CatalogHandler) Recipe(c echo.Context) error {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	rows, err := h.service.Recipe(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewDishIngredientResponses(rows))
}

// AddRecipeLine --> POST /dish/:id/ingredients
func (h *CatalogHandler) AddRecipeLine(c echo.Context) error {
	dishID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.DishIngredientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredient_id", req.IngredientID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	di, err := h.service.AddRecipeLine(c.Request().Context(), domain.DishIngredient{
		DishID: dishID, IngredientID: ingredientID, QuantityRequired: req.QuantityRequired,
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusCreated, domain.NewDishIngredientResponses([]domain.DishIngredient{di})[0])
}

// SetRecipeLine --> PUT /dish/:id/ingredients/:ingredientId
func (h *CatalogHandler) SetRecipeLine(c echo.Context) error {
	dishID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	var req domain.DishIngredientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Fail(c, err)
	}
	di, err := h.service.SetRecipeLine(c.Request().Context(), domain.DishIngredient{
		DishID: dishID, IngredientID: ingredientID, QuantityRequired: req.QuantityRequired,
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	return c.JSON(http.StatusOK, domain.NewDishIngredientResponses([]domain.DishIngredient{di})[0])
}

// RemoveRecipeLine --> DELETE /dish/:id/ingredients/:ingredientId
func (h *CatalogHandler) RemoveRecipeLine(c echo.Context) error {
	dishID, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	ingredientID, err := domain.ParseID("ingredientId", c.Param("ingredientId"))
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := h.service.RemoveRecipeLine(c.Request().Context(), dishID, ingredientID); err != nil {
		return httpx.Fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
