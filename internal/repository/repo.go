package repository

import (
	"context"
	"errors"

	"good-food/internal/domain"
)

// ErrLockTimeout is returned by Tx methods when a row lock could not be
// acquired within the store's lock timeout.
var ErrLockTimeout = errors.New("repository: lock wait timeout")

type CatalogReader interface {
	GetDish(ctx context.Context, id string) (domain.Dish, error)
	DishIngredients(ctx context.Context, dishID string) ([]domain.DishIngredient, error)
}

// Tx is one atomic unit of work. Row locks taken through it are held until
// the surrounding WithTx returns.
type Tx interface {
	CatalogReader
	GetIngredient(ctx context.Context, id string) (domain.Ingredient, error)
	FranchiseExists(ctx context.Context, id string) (bool, error)

	// LockStock locks the existing rows of ingredientIDs in the given order and
	// returns their quantities. Absent rows are missing from the map.
	LockStock(ctx context.Context, franchiseID string, ingredientIDs []string) (map[string]int64, error)
	// AddStock adds delta to a row, creating it when absent, and returns the new quantity.
	AddStock(ctx context.Context, franchiseID, ingredientID string, delta int64) (int64, error)
	// PutStock sets a row to quantity, creating it when absent.
	PutStock(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error)

	InsertOrder(ctx context.Context, o domain.Order) error
	LockOrder(ctx context.Context, id string) (domain.Order, error)
	SaveOrder(ctx context.Context, o domain.Order) error
	DeleteOrder(ctx context.Context, id string) error

	InsertCommand(ctx context.Context, c domain.Command) error
	LockCommand(ctx context.Context, id string) (domain.Command, error)
	SaveCommand(ctx context.Context, c domain.Command) error

	AppendStatusLog(ctx context.Context, change domain.StatusChange) error
}

// CatalogStore administers franchises, ingredients, dishes and recipes.
// Each call commits on its own; the update callbacks run with the row held.
type CatalogStore interface {
	CreateFranchise(ctx context.Context, f domain.Franchise) error
	GetFranchise(ctx context.Context, id string) (domain.Franchise, error)

	CreateIngredient(ctx context.Context, i domain.Ingredient) error
	GetIngredient(ctx context.Context, id string) (domain.Ingredient, error)
	UpdateIngredient(ctx context.Context, id string, fn func(*domain.Ingredient) error) (domain.Ingredient, error)

	// CreateDish fails with NotFoundError when the franchise does not exist.
	CreateDish(ctx context.Context, d domain.Dish) error
	GetDish(ctx context.Context, id string) (domain.Dish, error)
	UpdateDish(ctx context.Context, id string, fn func(*domain.Dish) error) (domain.Dish, error)
	// DeleteDish removes the dish together with its recipe.
	DeleteDish(ctx context.Context, id string) error

	Recipe(ctx context.Context, dishID string) ([]domain.DishIngredient, error)
	// AddRecipeLine fails with ConflictError when the line already exists.
	AddRecipeLine(ctx context.Context, di domain.DishIngredient) error
	SetRecipeLine(ctx context.Context, di domain.DishIngredient) error
	RemoveRecipeLine(ctx context.Context, dishID, ingredientID string) error
}

// Store runs transactions and serves display reads. Display reads may be
// stale and must never gate a state transition.
type Store interface {
	CatalogStore
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetCommand(ctx context.Context, id string) (domain.Command, error)
	GetStock(ctx context.Context, franchiseID, ingredientID string) (domain.Stock, error)
	ListStock(ctx context.Context, franchiseID string) ([]domain.Stock, error)
	Timeline(ctx context.Context, entity, id string) ([]domain.StatusChange, error)

	Close()
}
