package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SelectedOptionRequest struct {
	OptionID        string          `json:"optionId"`
	Name            string          `json:"name"`
	AdditionalPrice decimal.Decimal `json:"additionalPrice"`
}

type OrderItemRequest struct {
	ItemID          string                  `json:"itemId"`
	Quantity        int64                   `json:"quantity"`
	UnitPrice       decimal.Decimal         `json:"unitPrice"`
	SelectedOptions []SelectedOptionRequest `json:"selectedOptions,omitempty"`
}

type CreateOrderRequest struct {
	ShopID string             `json:"shopId"`
	Items  []OrderItemRequest `json:"items"`
}

type UpdateOrderItemsRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type SelectedOptionResponse struct {
	OptionID        string `json:"optionId"`
	Name            string `json:"name"`
	AdditionalPrice string `json:"additionalPrice"`
}

type OrderItemResponse struct {
	ItemID          string                   `json:"itemId"`
	Quantity        int64                    `json:"quantity"`
	UnitPrice       string                   `json:"unitPrice"`
	SelectedOptions []SelectedOptionResponse `json:"selectedOptions,omitempty"`
}

type OrderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	ShopID    string              `json:"shopId"`
	Status    OrderStatus         `json:"status"`
	Total     string              `json:"total"`
	Items     []OrderItemResponse `json:"items"`
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type UpsertStockRequest struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     *int64 `json:"quantity"`
}

type UpdateStockQuantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

type CommandItemRequest struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     int64  `json:"quantity"`
}

type CreateCommandRequest struct {
	FranchiseID string               `json:"franchise_id"`
	UserID      string               `json:"user_id"`
	Items       []CommandItemRequest `json:"items"`
}

type UpdateCommandRequest struct {
	Status *string               `json:"status,omitempty"`
	UserID *string               `json:"user_id,omitempty"`
	Items  *[]CommandItemRequest `json:"items,omitempty"`
}

type UpdateCommandItemRequest struct {
	Quantity int64 `json:"quantity"`
}

type CommandItemResponse struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     int64  `json:"quantity"`
}

type CommandResponse struct {
	ID            string                `json:"id"`
	FranchiseID   string                `json:"franchise_id"`
	UserID        string                `json:"user_id"`
	Status        CommandStatus         `json:"status"`
	Items         []CommandItemResponse `json:"items"`
	EstimatedCost string                `json:"estimated_cost"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type CreateFranchiseRequest struct {
	Name string `json:"name"`
}

type FranchiseResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateIngredientRequest struct {
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	SupplierID string          `json:"supplier_id,omitempty"`
}

type UpdateIngredientRequest struct {
	Name       *string          `json:"name,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	SupplierID *string          `json:"supplier_id,omitempty"`
}

type IngredientResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unit_price"`
	SupplierID string `json:"supplier_id,omitempty"`
}

type CreateDishRequest struct {
	FranchiseID  string          `json:"franchise_id"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Availability *bool           `json:"availability,omitempty"`
	MenuID       *string         `json:"menu_id,omitempty"`
}

type UpdateDishRequest struct {
	Name         *string          `json:"name,omitempty"`
	BasePrice    *decimal.Decimal `json:"base_price,omitempty"`
	Availability *bool            `json:"availability,omitempty"`
	MenuID       *string          `json:"menu_id,omitempty"`
}

type DishResponse struct {
	ID           string  `json:"id"`
	FranchiseID  string  `json:"franchise_id"`
	Name         string  `json:"name"`
	BasePrice    string  `json:"base_price"`
	Availability bool    `json:"availability"`
	MenuID       *string `json:"menu_id,omitempty"`
}

type DishIngredientRequest struct {
	IngredientID     string `json:"ingredient_id"`
	QuantityRequired int64  `json:"quantity_required"`
}

type DishIngredientResponse struct {
	DishID           string `json:"dish_id"`
	IngredientID     string `json:"ingredient_id"`
	QuantityRequired int64  `json:"quantity_required"`
}

// ParseID validates a uuid-shaped identifier and returns its canonical form.
func ParseID(field, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: field, Reason: "must be a uuid"}
	}
	return id.String(), nil
}

func ConvertOrderItems(reqs []OrderItemRequest) ([]OrderItem, error) {
	if len(reqs) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	items := make([]OrderItem, 0, len(reqs))
	for i, r := range reqs {
		id, err := ParseID(fmt.Sprintf("items[%d].itemId", i), r.ItemID)
		if err != nil {
			return nil, err
		}
		price, err := MoneyFromDecimal(r.UnitPrice)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].unitPrice", i), Reason: err.Error()}
		}
		if err := CheckQuantity(fmt.Sprintf("items[%d].quantity", i), r.Quantity); err != nil {
			return nil, err
		}
		item := OrderItem{ItemID: id, Quantity: r.Quantity, UnitPrice: price}
		for j, o := range r.SelectedOptions {
			add, err := MoneyFromDecimal(o.AdditionalPrice)
			if err != nil {
				return nil, &ValidationError{
					Field:  fmt.Sprintf("items[%d].selectedOptions[%d].additionalPrice", i, j),
					Reason: err.Error(),
				}
			}
			item.SelectedOptions = append(item.SelectedOptions, SelectedOption{
				OptionID: o.OptionID, Name: o.Name, AdditionalPrice: add,
			})
		}
		items = append(items, item)
	}
	return items, nil
}

func ConvertCommandItems(reqs []CommandItemRequest) ([]CommandItem, error) {
	items := make([]CommandItem, 0, len(reqs))
	for i, r := range reqs {
		id, err := ParseID(fmt.Sprintf("items[%d].ingredient_id", i), r.IngredientID)
		if err != nil {
			return nil, err
		}
		if err := CheckQuantity(fmt.Sprintf("items[%d].quantity", i), r.Quantity); err != nil {
			return nil, err
		}
		items = append(items, CommandItem{IngredientID: id, Quantity: r.Quantity})
	}
	return items, nil
}

func NewOrderResponse(o Order) OrderResponse {
	resp := OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		ShopID:    o.ShopID,
		Status:    o.Status,
		Total:     o.Total.String(),
		Items:     make([]OrderItemResponse, 0, len(o.Items)),
		Version:   o.Version,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, it := range o.Items {
		ir := OrderItemResponse{ItemID: it.ItemID, Quantity: it.Quantity, UnitPrice: it.UnitPrice.String()}
		for _, opt := range it.SelectedOptions {
			ir.SelectedOptions = append(ir.SelectedOptions, SelectedOptionResponse{
				OptionID: opt.OptionID, Name: opt.Name, AdditionalPrice: opt.AdditionalPrice.String(),
			})
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

func NewCommandResponse(c Command) CommandResponse {
	resp := CommandResponse{
		ID:            c.ID,
		FranchiseID:   c.FranchiseID,
		UserID:        c.UserID,
		Status:        c.Status,
		Items:         make([]CommandItemResponse, 0, len(c.Items)),
		EstimatedCost: c.EstimatedCost.String(),
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	for _, it := range c.Items {
		resp.Items = append(resp.Items, CommandItemResponse{IngredientID: it.IngredientID, Quantity: it.Quantity})
	}
	return resp
}

// PriceFromDecimal converts a request price, reporting failures against field.
func PriceFromDecimal(field string, d decimal.Decimal) (Money, error) {
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: err.Error()}
	}
	return m, nil
}

func NewIngredientResponse(i Ingredient) IngredientResponse {
	return IngredientResponse{ID: i.ID, Name: i.Name, UnitPrice: i.UnitPrice.String(), SupplierID: i.SupplierID}
}

func NewDishResponse(d Dish) DishResponse {
	return DishResponse{
		ID: d.ID, FranchiseID: d.FranchiseID, Name: d.Name,
		BasePrice: d.BasePrice.String(), Availability: d.Available, MenuID: d.MenuID,
	}
}

func NewDishIngredientResponses(rows []DishIngredient) []DishIngredientResponse {
	out := make([]DishIngredientResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, DishIngredientResponse{DishID: r.DishID, IngredientID: r.IngredientID, QuantityRequired: r.QuantityRequired})
	}
	return out
}
