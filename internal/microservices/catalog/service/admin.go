package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"good-food/internal/common/logger"
	"good-food/internal/domain"
	"good-food/internal/repository"
)

// CatalogServiceInterface administers the catalog that order confirmation
// expands recipes against. Recipe edits apply to confirmations that start
// after they commit; reservations already held are not recomputed.
type CatalogServiceInterface interface {
	CreateFranchise(ctx context.Context, name string) (domain.Franchise, error)
	GetFranchise(ctx context.Context, id string) (domain.Franchise, error)

	CreateIngredient(ctx context.Context, in domain.Ingredient) (domain.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (domain.Ingredient, error)
	UpdateIngredient(ctx context.Context, id string, upd IngredientUpdate) (domain.Ingredient, error)

	CreateDish(ctx context.Context, in domain.Dish) (domain.Dish, error)
	GetDish(ctx context.Context, id string) (domain.Dish, error)
	UpdateDish(ctx context.Context, id string, upd DishUpdate) (domain.Dish, error)
	DeleteDish(ctx context.Context, id string) error

	Recipe(ctx context.Context, dishID string) ([]domain.DishIngredient, error)
	AddRecipeLine(ctx context.Context, di domain.DishIngredient) (domain.DishIngredient, error)
	SetRecipeLine(ctx context.Context, di domain.DishIngredient) (domain.DishIngredient, error)
	RemoveRecipeLine(ctx context.Context, dishID, ingredientID string) error
}

// IngredientUpdate and DishUpdate change only their non-nil fields.
type IngredientUpdate struct {
	Name       *string
	UnitPrice  *domain.Money
	SupplierID *string
}

type DishUpdate struct {
	Name      *string
	BasePrice *domain.Money
	Available *bool
	MenuID    *string
}

type CatalogService struct {
	store repository.CatalogStore
	lg    *logger.Logger
	newID func() string
}

func NewCatalogService(store repository.CatalogStore, lg *logger.Logger) *CatalogService {
	return &CatalogService{store: store, lg: lg, newID: uuid.NewString}
}

func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	return name, nil
}

func checkPrice(field string, m domain.Money) error {
	if m < 0 {
		return &domain.ValidationError{Field: field, Reason: "must be >= 0"}
	}
	if m > domain.MaxAmount {
		return &domain.ValidationError{Field: field, Reason: "exceeds the supported range"}
	}
	return nil
}

func (s *CatalogService) CreateFranchise(ctx context.Context, name string) (domain.Franchise, error) {
	name, err := checkName(name)
	if err != nil {
		return domain.Franchise{}, err
	}
	f := domain.Franchise{ID: s.newID(), Name: name}
	if err := s.store.CreateFranchise(ctx, f); err != nil {
		return domain.Franchise{}, err
	}
	s.lg.Info("franchise_created", map[string]any{"franchise_id": f.ID, "name": f.Name})
	return f, nil
}

func (s *CatalogService) GetFranchise(ctx context.Context, id string) (domain.Franchise, error) {
	return s.store.GetFranchise(ctx, id)
}

func (s *CatalogService) CreateIngredient(ctx context.Context, in domain.Ingredient) (domain.Ingredient, error) {
	name, err := checkName(in.Name)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if err := checkPrice("unit_price", in.UnitPrice); err != nil {
		return domain.Ingredient{}, err
	}
	in.ID, in.Name = s.newID(), name
	if err := s.store.CreateIngredient(ctx, in); err != nil {
		return domain.Ingredient{}, err
	}
	s.lg.Info("ingredient_created", map[string]any{"ingredient_id": in.ID, "unit_price": in.UnitPrice.String()})
	return in, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	return s.store.GetIngredient(ctx, id)
}

func (s *CatalogService) UpdateIngredient(ctx context.Context, id string, upd IngredientUpdate) (domain.Ingredient, error) {
	var name string
	if upd.Name != nil {
		n, err := checkName(*upd.Name)
		if err != nil {
			return domain.Ingredient{}, err
		}
		name = n
	}
	if upd.UnitPrice != nil {
		if err := checkPrice("unit_price", *upd.UnitPrice); err != nil {
			return domain.Ingredient{}, err
		}
	}
	ing, err := s.store.UpdateIngredient(ctx, id, func(i *domain.Ingredient) error {
		if upd.Name != nil {
			i.Name = name
		}
		if upd.UnitPrice != nil {
			i.UnitPrice = *upd.UnitPrice
		}
		if upd.SupplierID != nil {
			i.SupplierID = *upd.SupplierID
		}
		return nil
	})
	if err != nil {
		return domain.Ingredient{}, err
	}
	s.lg.Info("ingredient_updated", map[string]any{"ingredient_id": id})
	return ing, nil
}

func (s *CatalogService) CreateDish(ctx context.Context, in domain.Dish) (domain.Dish, error) {
	name, err := checkName(in.Name)
	if err != nil {
		return domain.Dish{}, err
	}
	if err := checkPrice("base_price", in.BasePrice); err != nil {
		return domain.Dish{}, err
	}
	in.ID, in.Name = s.newID(), name
	if err := s.store.CreateDish(ctx, in); err != nil {
		return domain.Dish{}, err
	}
	s.lg.Info("dish_created", map[string]any{"dish_id": in.ID, "franchise_id": in.FranchiseID})
	return in, nil
}

func (s *CatalogService) GetDish(ctx context.Context, id string) (domain.Dish, error) {
	return s.store.GetDish(ctx, id)
}

func (s *CatalogService) UpdateDish(ctx context.Context, id string, upd DishUpdate) (domain.Dish, error) {
	var name string
	if upd.Name != nil {
		n, err := checkName(*upd.Name)
		if err != nil {
			return domain.Dish{}, err
		}
		name = n
	}
	if upd.BasePrice != nil {
		if err := checkPrice("base_price", *upd.BasePrice); err != nil {
			return domain.Dish{}, err
		}
	}
	d, err := s.store.UpdateDish(ctx, id, func(d *domain.Dish) error {
		if upd.Name != nil {
			d.Name = name
		}
		if upd.BasePrice != nil {
			d.BasePrice = *upd.BasePrice
		}
		if upd.Available != nil {
			d.Available = *upd.Available
		}
		if upd.MenuID != nil {
			d.MenuID = upd.MenuID
		}
		return nil
	})
	if err != nil {
		return domain.Dish{}, err
	}
	s.lg.Info("dish_updated", map[string]any{"dish_id": id, "available": d.Available})
	return d, nil
}

func (s *CatalogService) DeleteDish(ctx context.Context, id string) error {
	if err := s.store.DeleteDish(ctx, id); err != nil {
		return err
	}
	s.lg.Info("dish_deleted", map[string]any{"dish_id": id})
	return nil
}

func (s *CatalogService) Recipe(ctx context.Context, dishID string) ([]domain.DishIngredient, error) {
	return s.store.Recipe(ctx, dishID)
}

func (s *CatalogService) AddRecipeLine(ctx context.Context, di domain.DishIngredient) (domain.DishIngredient, error) {
	if err := domain.CheckQuantity("quantity_required", di.QuantityRequired); err != nil {
		return domain.DishIngredient{}, err
	}
	if err := s.store.AddRecipeLine(ctx, di); err != nil {
		return domain.DishIngredient{}, err
	}
	s.lg.Info("recipe_line_added", map[string]any{"dish_id": di.DishID, "ingredient_id": di.IngredientID, "quantity_required": di.QuantityRequired})
	return di, nil
}

func (s *CatalogService) SetRecipeLine(ctx context.Context, di domain.DishIngredient) (domain.DishIngredient, error) {
	if err := domain.CheckQuantity("quantity_required", di.QuantityRequired); err != nil {
		return domain.DishIngredient{}, err
	}
	if err := s.store.SetRecipeLine(ctx, di); err != nil {
		return domain.DishIngredient{}, err
	}
	s.lg.Info("recipe_line_updated", map[string]any{"dish_id": di.DishID, "ingredient_id": di.IngredientID, "quantity_required": di.QuantityRequired})
	return di, nil
}

func (s *CatalogService) RemoveRecipeLine(ctx context.Context, dishID, ingredientID string) error {
	if err := s.store.RemoveRecipeLine(ctx, dishID, ingredientID); err != nil {
		return err
	}
	s.lg.Info("recipe_line_removed", map[string]any{"dish_id": dishID, "ingredient_id": ingredientID})
	return nil
}
